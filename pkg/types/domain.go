package types

// ModelInfo describes a servable model as listed by GET /api/v1/models.
type ModelInfo struct {
	// Canonical model key.
	// example: bigscience/bloom
	Key string `json:"key" example:"bigscience/bloom"`
	// Human-friendly name.
	// example: BLOOM-176B
	Name string `json:"name" example:"BLOOM-176B"`
	// Alternative keys accepted by the API.
	Aliases []string `json:"aliases,omitempty"`
	// Link to the model card.
	// example: https://huggingface.co/bigscience/bloom
	ModelCard string `json:"model_card,omitempty" example:"https://huggingface.co/bigscience/bloom"`
	// example: https://bit.ly/bloom-license
	License string `json:"license,omitempty" example:"https://bit.ly/bloom-license"`
	// Upper bound on max_length when opening a session; 0 means unbounded.
	// example: 2048
	MaxSessionLength int `json:"max_session_length,omitempty" example:"2048"`
	// Chat frontends append this after each turn.
	// example: </s>
	StopToken string `json:"stop_token,omitempty" example:"</s>"`
	// Chat frontends place this between turns.
	// example: \n\n
	SepToken string `json:"sep_token,omitempty"`
	// Stop sequences chat frontends should send with generate requests.
	ExtraStopSequences []string `json:"extra_stop_sequences,omitempty"`
}
