package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Open(ctx context.Context, model string, maxLength int) (string, error)
	Touch(id string) error
	Close(id string) error
	Generate(ctx context.Context, id string, req manager.GenerateRequest, emit func(manager.Chunk) error) error
	GenerateOnce(ctx context.Context, model string, maxLength int, req manager.GenerateRequest) (string, error)
	ListModels() []types.ModelInfo
	Status() types.StatusResponse
	Ready() bool
}

var _ Service = (*manager.Manager)(nil)

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// The WebSocket route sits outside the compressed group.
	r.Get("/api/v2/generate", handleWS(svc))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/api/v1/open_inference_session", handleOpen(svc))
		r.Get("/api/v1/close_inference_session", handleClose(svc))
		r.Post("/api/v1/generate", handleGenerate(svc))
		r.Get("/api/v1/models", handleModels(svc))

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, svc.Status())
		})

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if svc.Ready() {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ready"))
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("no models"))
		})

		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	})

	MountSwagger(r)
	return r
}
