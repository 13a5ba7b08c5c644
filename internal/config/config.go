package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied by Defaults when the corresponding field is unset.
const (
	DefaultAddr           = ":8080"
	DefaultMaxSessions    = 50
	DefaultSessionTTL     = 5 * time.Minute
	DefaultSweepInterval  = 30 * time.Second
	DefaultStepTimeout    = 5 * time.Minute
	DefaultWSPingInterval = 25 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	DefaultEventsStream   = "inferd:events"
	DefaultEventsMaxLen   = 10000
	DefaultStepTokens     = 1
	// WholeBudgetStepTokens as step_tokens generates each request in one
	// engine call.
	WholeBudgetStepTokens = -1
)

// Backends understood by the model registry.
const (
	BackendLlamaServer = "llama-server"
	BackendEcho        = "echo"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Defaults.
type Config struct {
	Addr           string   `json:"addr" yaml:"addr" toml:"addr" env:"INFERD_ADDR"`
	MaxSessions    int      `json:"max_sessions" yaml:"max_sessions" toml:"max_sessions" env:"INFERD_MAX_SESSIONS"`
	SessionTTL     Duration `json:"session_ttl" yaml:"session_ttl" toml:"session_ttl" env:"INFERD_SESSION_TTL"`
	SweepInterval  Duration `json:"sweep_interval" yaml:"sweep_interval" toml:"sweep_interval" env:"INFERD_SWEEP_INTERVAL"`
	StepTimeout    Duration `json:"step_timeout" yaml:"step_timeout" toml:"step_timeout" env:"INFERD_STEP_TIMEOUT"`
	WSPingInterval Duration `json:"ws_ping_interval" yaml:"ws_ping_interval" toml:"ws_ping_interval" env:"INFERD_WS_PING_INTERVAL"`
	MaxBodyBytes   int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" env:"INFERD_MAX_BODY_BYTES"`
	// StepTokens caps tokens per engine call. -1 spends the whole remaining
	// budget in one call.
	StepTokens   int    `json:"step_tokens" yaml:"step_tokens" toml:"step_tokens" env:"INFERD_STEP_TOKENS"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model" env:"INFERD_DEFAULT_MODEL"`

	CORS   CORSConfig    `json:"cors" yaml:"cors" toml:"cors"`
	Log    LogConfig     `json:"log" yaml:"log" toml:"log"`
	Events EventsConfig  `json:"events" yaml:"events" toml:"events"`
	Models []ModelConfig `json:"models" yaml:"models" toml:"models"`
}

type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled" env:"INFERD_CORS_ENABLED"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins" env:"INFERD_CORS_ALLOWED_ORIGINS"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

type LogConfig struct {
	// Level is a zerolog level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level" toml:"level" env:"INFERD_LOG_LEVEL"`
	// Format is json or console.
	Format string `json:"format" yaml:"format" toml:"format" env:"INFERD_LOG_FORMAT"`
}

// EventsConfig enables publishing session lifecycle events to a Redis stream.
type EventsConfig struct {
	RedisAddr string `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr" env:"INFERD_EVENTS_REDIS_ADDR"`
	Stream    string `json:"stream" yaml:"stream" toml:"stream" env:"INFERD_EVENTS_STREAM"`
	MaxLen    int64  `json:"max_len" yaml:"max_len" toml:"max_len" env:"INFERD_EVENTS_MAX_LEN"`
}

// ModelConfig declares one servable model.
type ModelConfig struct {
	Key            string   `json:"key" yaml:"key" toml:"key"`
	Aliases        []string `json:"aliases" yaml:"aliases" toml:"aliases"`
	Backend        string   `json:"backend" yaml:"backend" toml:"backend"`
	URL            string   `json:"url" yaml:"url" toml:"url"`
	APIKey         string   `json:"api_key" yaml:"api_key" toml:"api_key"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	// Tokenizer applies to the echo backend only: "bytes" or "tiktoken:<encoding>".
	Tokenizer string `json:"tokenizer" yaml:"tokenizer" toml:"tokenizer"`
	// StepDelay slows the echo backend per token.
	StepDelay Duration `json:"step_delay" yaml:"step_delay" toml:"step_delay"`
	Sentinel  string   `json:"sentinel" yaml:"sentinel" toml:"sentinel"`
	// PublicAPI hides the model from the API when false. Unset means true.
	PublicAPI              *bool `json:"public_api" yaml:"public_api" toml:"public_api"`
	SuppressPlainStopMatch bool  `json:"suppress_plain_stop_match" yaml:"suppress_plain_stop_match" toml:"suppress_plain_stop_match"`
	MaxSessionLength       int   `json:"max_session_length" yaml:"max_session_length" toml:"max_session_length"`

	Name               string   `json:"name" yaml:"name" toml:"name"`
	ModelCard          string   `json:"model_card" yaml:"model_card" toml:"model_card"`
	License            string   `json:"license" yaml:"license" toml:"license"`
	SepToken           string   `json:"sep_token" yaml:"sep_token" toml:"sep_token"`
	StopToken          string   `json:"stop_token" yaml:"stop_token" toml:"stop_token"`
	ExtraStopSequences []string `json:"extra_stop_sequences" yaml:"extra_stop_sequences" toml:"extra_stop_sequences"`
}

// IsPublic reports whether the model is exposed through the API.
func (m ModelConfig) IsPublic() bool { return m.PublicAPI == nil || *m.PublicAPI }

// Defaults fills unset fields with package defaults.
func (c *Config) Defaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.SessionTTL.Duration == 0 {
		c.SessionTTL.Duration = DefaultSessionTTL
	}
	if c.SweepInterval.Duration == 0 {
		c.SweepInterval.Duration = DefaultSweepInterval
	}
	if c.StepTimeout.Duration == 0 {
		c.StepTimeout.Duration = DefaultStepTimeout
	}
	if c.WSPingInterval.Duration == 0 {
		c.WSPingInterval.Duration = DefaultWSPingInterval
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.StepTokens == 0 {
		c.StepTokens = DefaultStepTokens
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Events.Stream == "" {
		c.Events.Stream = DefaultEventsStream
	}
	if c.Events.MaxLen == 0 {
		c.Events.MaxLen = DefaultEventsMaxLen
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Accept", "Content-Type", "X-Log-Level"}
	}
	for i := range c.Models {
		m := &c.Models[i]
		if m.Backend == "" {
			m.Backend = BackendLlamaServer
		}
		if m.Name == "" {
			m.Name = m.Key
		}
	}
	if c.DefaultModel == "" && len(c.Models) > 0 {
		c.DefaultModel = c.Models[0].Key
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must be positive, got %d", c.MaxSessions)
	}
	if c.SessionTTL.Duration < 0 || c.SweepInterval.Duration < 0 || c.StepTimeout.Duration < 0 || c.WSPingInterval.Duration < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.StepTokens < WholeBudgetStepTokens {
		return fmt.Errorf("step_tokens must be positive or -1, got %d", c.StepTokens)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("no models configured")
	}
	seen := map[string]string{}
	claim := func(name, key string) error {
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("model name %q used by both %q and %q", name, prev, key)
		}
		seen[name] = key
		return nil
	}
	for _, m := range c.Models {
		if m.Key == "" {
			return fmt.Errorf("model entry without key")
		}
		if err := claim(m.Key, m.Key); err != nil {
			return err
		}
		for _, a := range m.Aliases {
			if err := claim(a, m.Key); err != nil {
				return err
			}
		}
		switch m.Backend {
		case BackendLlamaServer:
			if m.URL == "" {
				return fmt.Errorf("model %q: llama-server backend requires url", m.Key)
			}
		case BackendEcho:
		default:
			return fmt.Errorf("model %q: unknown backend %q", m.Key, m.Backend)
		}
		if m.MaxSessionLength < 0 {
			return fmt.Errorf("model %q: max_session_length must not be negative", m.Key)
		}
	}
	if c.DefaultModel != "" {
		if _, ok := seen[c.DefaultModel]; !ok {
			return fmt.Errorf("default_model %q is not a configured model", c.DefaultModel)
		}
	}
	return nil
}
