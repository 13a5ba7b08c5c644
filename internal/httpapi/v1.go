package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// handleOpen opens a session reachable later by session_id over WebSocket.
//
// @Summary      Open an inference session
// @Tags         sessions
// @Produce      json
// @Param        model       query  string  false  "Model key or alias"
// @Param        max_length  query  int     true   "Maximum context length"
// @Success      200  {object}  types.SessionResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Router       /api/v1/open_inference_session [get]
func handleOpen(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxLength, err := intParam(r, "max_length")
		if err != nil {
			writeError(w, err)
			return
		}
		if maxLength == nil {
			writeError(w, manager.ErrValidation("max_length is required"))
			return
		}
		model := r.FormValue("model")
		id, err := svc.Open(r.Context(), model, *maxLength)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, types.SessionResponse{OK: true, SessionID: id})
	}
}

// handleClose closes a session.
//
// @Summary      Close an inference session
// @Tags         sessions
// @Produce      json
// @Param        session_id  query  string  true  "Session id"
// @Success      200  {object}  types.SessionResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /api/v1/close_inference_session [get]
func handleClose(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.FormValue("session_id")
		if id == "" {
			writeError(w, manager.ErrValidation("session_id is required"))
			return
		}
		if err := svc.Close(id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, types.SessionResponse{OK: true, SessionID: id})
	}
}

// handleGenerate runs a one-shot generation in a temporary session.
//
// @Summary      Generate text in a temporary session
// @Tags         generate
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        model           formData  string  false  "Model key or alias"
// @Param        inputs          formData  string  false  "Prompt"
// @Param        do_sample       formData  int     false  "1 to sample, 0 for greedy"
// @Param        temperature     formData  number  false  "Sampling temperature"
// @Param        top_k           formData  int     false  "Top-k"
// @Param        top_p           formData  number  false  "Top-p"
// @Param        max_length      formData  int     false  "Total length bound"
// @Param        max_new_tokens  formData  int     false  "Tokens to generate"
// @Success      200  {object}  types.GenerateResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Failure      502  {object}  types.ErrorResponse
// @Router       /api/v1/generate [post]
func handleGenerate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rl := newReqLogger(r)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		if _, ok := r.Form["session_id"]; ok {
			writeError(w, manager.ErrValidation("Reusing inference sessions was removed from HTTP API, please use WebSocket API instead"))
			return
		}
		opts, err := formSamplingOptions(r)
		if err != nil {
			writeError(w, err)
			return
		}
		req, err := opts.generateRequest()
		if err != nil {
			writeError(w, err)
			return
		}
		if _, ok := r.Form["inputs"]; ok {
			inputs := r.Form.Get("inputs")
			req.Inputs = &inputs
		}
		sessionLength := 0
		if req.MaxLength != nil {
			sessionLength = *req.MaxLength
		}
		model := r.Form.Get("model")

		start := time.Now()
		if ev := rl.Info(); ev != nil {
			ev.Str("model", model).Int("max_length", sessionLength).Msg("generate start")
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		out, err := svc.GenerateOnce(ctx, model, sessionLength, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			if ev := rl.Error(); ev != nil {
				ev.Err(err).Int("status", statusOf(err)).Dur("dur", time.Since(start)).Msg("generate end")
			}
			writeError(w, err)
			return
		}
		if ev := rl.Debug(); ev != nil {
			ev.Str("outputs", out).Msg("generate outputs")
		}
		if ev := rl.Info(); ev != nil {
			ev.Int("status", http.StatusOK).Dur("dur", time.Since(start)).Msg("generate end")
		}
		writeJSON(w, types.GenerateResponse{OK: true, Outputs: out})
	}
}

// handleModels lists public models.
//
// @Summary      List models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /api/v1/models [get]
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models := svc.ListModels()
		if models == nil {
			models = []types.ModelInfo{}
		}
		writeJSON(w, types.ModelsResponse{OK: true, Models: models})
	}
}

func formSamplingOptions(r *http.Request) (samplingOptions, error) {
	var o samplingOptions
	if v := r.Form.Get("do_sample"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return o, manager.ErrValidation("invalid do_sample %q", v)
		}
		o.DoSample = b
	}
	var err error
	if o.Temperature, err = floatParam(r, "temperature"); err != nil {
		return o, err
	}
	if o.TopK, err = intParam(r, "top_k"); err != nil {
		return o, err
	}
	if o.TopP, err = floatParam(r, "top_p"); err != nil {
		return o, err
	}
	if o.MaxLength, err = intParam(r, "max_length"); err != nil {
		return o, err
	}
	if o.MaxNewTokens, err = intParam(r, "max_new_tokens"); err != nil {
		return o, err
	}
	return o, nil
}

func intParam(r *http.Request, name string) (*int, error) {
	v := r.FormValue(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return nil, manager.ErrValidation("invalid %s %q: expected an integer", name, v)
	}
	return &n, nil
}

func floatParam(r *http.Request, name string) (*float32, error) {
	v := r.FormValue(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
	if err != nil {
		return nil, manager.ErrValidation("invalid %s %q: expected a number", name, v)
	}
	f32 := float32(f)
	return &f32, nil
}
