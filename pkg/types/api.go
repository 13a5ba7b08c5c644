package types

import (
	"bytes"
	"fmt"
)

// WebSocket message types sent by clients on /api/v2/generate.
const (
	MsgOpenSession  = "open_inference_session"
	MsgGenerate     = "generate"
	MsgCloseSession = "close_inference_session"
)

// ClientMessage is the union of all messages a WebSocket client may send.
// Type selects which fields are meaningful.
type ClientMessage struct {
	// Message discriminator.
	// example: generate
	Type string `json:"type" example:"generate"`

	// Model key or alias for open_inference_session. Empty selects the default model.
	// example: bigscience/bloom
	Model string `json:"model,omitempty" example:"bigscience/bloom"`
	// Maximum context length of the session (open) or of this request (generate).
	// example: 512
	MaxLength *int `json:"max_length,omitempty" example:"512"`
	// Existing session to attach to instead of opening a new one.
	// example: 3f1c0b5a8e6d4f2a9b7c1d0e2f3a4b5c
	SessionID string `json:"session_id,omitempty" example:"3f1c0b5a8e6d4f2a9b7c1d0e2f3a4b5c"`

	// Text to feed before generating. Absent continues the existing context.
	// example: A cat sat on
	Inputs *string `json:"inputs,omitempty" example:"A cat sat on"`
	// Sample instead of greedy decoding. Accepts true/false or 1/0.
	DoSample FlexBool `json:"do_sample,omitempty"`
	// example: 0.7
	Temperature *float32 `json:"temperature,omitempty" example:"0.7"`
	// example: 40
	TopK *int `json:"top_k,omitempty" example:"40"`
	// example: 0.9
	TopP *float32 `json:"top_p,omitempty" example:"0.9"`
	// example: 16
	MaxNewTokens *int `json:"max_new_tokens,omitempty" example:"16"`
	// Generation stops once the output contains this text. Absent stops after the first chunk.
	// example: \n\n
	StopSequence *string `json:"stop_sequence,omitempty"`
	// Additional stop sequences; each must be a single token.
	ExtraStopSequences []string `json:"extra_stop_sequences,omitempty"`
}

// FlexBool decodes JSON booleans as well as the integers 0 and 1.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("expected a boolean or 0/1, got %s", data)
	}
	return nil
}

// SessionResponse acknowledges opening or closing a session.
type SessionResponse struct {
	// example: true
	OK bool `json:"ok" example:"true"`
	// example: 3f1c0b5a8e6d4f2a9b7c1d0e2f3a4b5c
	SessionID string `json:"session_id" example:"3f1c0b5a8e6d4f2a9b7c1d0e2f3a4b5c"`
}

// ChunkResponse carries one streamed piece of generated text.
type ChunkResponse struct {
	// example: true
	OK bool `json:"ok" example:"true"`
	// Text generated since the previous chunk.
	// example:  the mat
	Outputs string `json:"outputs" example:" the mat"`
	// True on the last chunk of a generate request.
	// example: false
	Stop bool `json:"stop" example:"false"`
	// Number of tokens covered by Outputs.
	// example: 2
	TokenCount int `json:"token_count" example:"2"`
}

// GenerateResponse is returned by POST /api/v1/generate.
type GenerateResponse struct {
	// example: true
	OK bool `json:"ok" example:"true"`
	// example:  the mat and purred.
	Outputs string `json:"outputs" example:" the mat and purred."`
}

// ErrorResponse is the failure envelope shared by every endpoint.
type ErrorResponse struct {
	// Always false.
	// example: false
	OK bool `json:"ok" example:"false"`
	// Human readable failure description.
	// example: session not found: 3f1c0b5a8e6d4f2a9b7c1d0e2f3a4b5c
	Traceback string `json:"traceback" example:"session not found: 3f1c0b5a8e6d4f2a9b7c1d0e2f3a4b5c"`
}

// Frame decodes any server frame; clients use it before they know which kind arrived.
type Frame struct {
	OK         bool   `json:"ok"`
	SessionID  string `json:"session_id,omitempty"`
	Outputs    string `json:"outputs,omitempty"`
	Stop       bool   `json:"stop,omitempty"`
	TokenCount int    `json:"token_count,omitempty"`
	Traceback  string `json:"traceback,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /api/v1/models.
type ModelsResponse struct {
	// example: true
	OK bool `json:"ok" example:"true"`
	// Models exposed through the public API.
	Models []ModelInfo `json:"models"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Sessions currently registered (expired ones not yet swept included).
	// example: 3
	LiveSessions int `json:"live_sessions" example:"3"`
	// Sessions currently inside a generate call.
	// example: 1
	BusySessions int `json:"busy_sessions" example:"1"`
	// Capacity limit.
	// example: 50
	MaxSessions int `json:"max_sessions" example:"50"`
	// Idle TTL of a session in seconds.
	// example: 300
	SessionTTLSeconds int64 `json:"session_ttl_seconds" example:"300"`
	// Sessions opened since start.
	// example: 120
	OpenedTotal uint64 `json:"opened_total" example:"120"`
	// Sessions closed by clients since start.
	// example: 100
	ClosedTotal uint64 `json:"closed_total" example:"100"`
	// Sessions removed by expiry since start.
	// example: 17
	ExpiredTotal uint64 `json:"expired_total" example:"17"`
	// Open attempts rejected for capacity since start.
	// example: 2
	RejectedTotal uint64 `json:"rejected_total" example:"2"`
	// Per-model live session counts.
	Models []ModelStatus `json:"models"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ModelStatus counts sessions of one model for /status.
type ModelStatus struct {
	// example: bigscience/bloom
	Key string `json:"key" example:"bigscience/bloom"`
	// example: 2
	LiveSessions int `json:"live_sessions" example:"2"`
}
