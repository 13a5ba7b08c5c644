package httpapi

import (
	"encoding/json"

	"inferd/internal/engine"
	"inferd/internal/manager"
	"inferd/pkg/types"
)

// decodeClientMessage parses one WebSocket text frame. Malformed JSON and
// unknown message types are protocol errors.
func decodeClientMessage(data []byte) (types.ClientMessage, error) {
	var msg types.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, protocolErrorf("malformed message: %v", err)
	}
	switch msg.Type {
	case types.MsgOpenSession, types.MsgGenerate, types.MsgCloseSession:
		return msg, nil
	case "":
		return msg, protocolErrorf("message has no type")
	default:
		return msg, protocolErrorf("unknown message type %q", msg.Type)
	}
}

// samplingOptions holds the optional sampling knobs shared by both APIs.
type samplingOptions struct {
	DoSample     bool
	Temperature  *float32
	TopK         *int
	TopP         *float32
	MaxNewTokens *int
	MaxLength    *int
}

// generateRequest validates sampling options and builds the manager request.
func (o samplingOptions) generateRequest() (manager.GenerateRequest, error) {
	p := engine.SamplingParams{DoSample: o.DoSample, Temperature: 1, TopP: 1}
	if o.Temperature != nil {
		if *o.Temperature < 0 {
			return manager.GenerateRequest{}, manager.ErrValidation("temperature must be non-negative, got %g", *o.Temperature)
		}
		p.Temperature = *o.Temperature
	}
	if o.TopK != nil {
		if *o.TopK < 0 {
			return manager.GenerateRequest{}, manager.ErrValidation("top_k must be non-negative, got %d", *o.TopK)
		}
		p.TopK = *o.TopK
	}
	if o.TopP != nil {
		if *o.TopP <= 0 || *o.TopP > 1 {
			return manager.GenerateRequest{}, manager.ErrValidation("top_p must be in (0, 1], got %g", *o.TopP)
		}
		p.TopP = *o.TopP
	}
	if o.MaxNewTokens != nil && *o.MaxNewTokens <= 0 {
		return manager.GenerateRequest{}, manager.ErrValidation("max_new_tokens must be positive, got %d", *o.MaxNewTokens)
	}
	if o.MaxLength != nil && *o.MaxLength <= 0 {
		return manager.GenerateRequest{}, manager.ErrValidation("max_length must be positive, got %d", *o.MaxLength)
	}
	return manager.GenerateRequest{Params: p, MaxNewTokens: o.MaxNewTokens, MaxLength: o.MaxLength}, nil
}

// wsGenerateRequest converts a generate message.
func wsGenerateRequest(msg types.ClientMessage) (manager.GenerateRequest, error) {
	req, err := samplingOptions{
		DoSample:     bool(msg.DoSample),
		Temperature:  msg.Temperature,
		TopK:         msg.TopK,
		TopP:         msg.TopP,
		MaxNewTokens: msg.MaxNewTokens,
		MaxLength:    msg.MaxLength,
	}.generateRequest()
	if err != nil {
		return req, err
	}
	req.Inputs = msg.Inputs
	req.StopSequence = msg.StopSequence
	req.ExtraStopSequences = msg.ExtraStopSequences
	return req, nil
}
