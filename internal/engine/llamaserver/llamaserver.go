// Package llamaserver implements engine.Engine and engine.Tokenizer against a
// running llama.cpp server using its native token-level endpoints
// (/tokenize, /detokenize and /completion).
//
// llama-server keeps no per-client session, so the committed context of every
// session lives here and is replayed as the prompt of each step. cache_prompt
// lets the server reuse its KV cache for the shared prefix.
package llamaserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"inferd/internal/engine"
)

// Options configures a Client.
type Options struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
}

// Client talks to one llama-server instance. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	reqTimeout time.Duration
	httpClient *http.Client
}

var (
	_ engine.Engine    = (*Client)(nil)
	_ engine.Tokenizer = (*Client)(nil)
)

// New constructs a Client. Zero timeouts fall back to 5m per request and 10s
// to connect.
func New(opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Deadlines come from the request context, never from the client.
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		reqTimeout: opts.RequestTimeout,
		httpClient: &http.Client{Transport: tr, Timeout: 0},
	}
}

type session struct {
	modelKey  string
	maxLength int
	// committed holds every token the server has already been fed.
	committed []int
	// pending is the last sampled token, not yet fed back.
	pending []int
	closed  bool
}

func (c *Client) OpenSession(ctx context.Context, modelKey string, maxLength int) (engine.Handle, error) {
	if maxLength <= 0 {
		return nil, errors.Errorf("max_length must be positive, got %d", maxLength)
	}
	return &session{modelKey: modelKey, maxLength: maxLength}, nil
}

func (c *Client) CloseSession(h engine.Handle) error {
	s, ok := h.(*session)
	if !ok {
		return errors.New("llamaserver: foreign handle")
	}
	if s.closed {
		return errors.New("llamaserver: session already closed")
	}
	s.closed = true
	s.committed, s.pending = nil, nil
	return nil
}

type completionRequest struct {
	Prompt       []int   `json:"prompt"`
	NPredict     int     `json:"n_predict"`
	Temperature  float32 `json:"temperature"`
	TopK         int     `json:"top_k,omitempty"`
	TopP         float32 `json:"top_p,omitempty"`
	CachePrompt  bool    `json:"cache_prompt"`
	IDSlot       int     `json:"id_slot"`
	ReturnTokens bool    `json:"return_tokens"`
	Stream       bool    `json:"stream"`
}

type completionChunk struct {
	Content string `json:"content"`
	Tokens  []int  `json:"tokens"`
	Stop    bool   `json:"stop"`
}

func (c *Client) Generate(ctx context.Context, h engine.Handle, req engine.Request) ([]int, error) {
	s, ok := h.(*session)
	if !ok {
		return nil, errors.New("llamaserver: foreign handle")
	}
	if s.closed {
		return nil, errors.New("llamaserver: session closed")
	}
	prompt := make([]int, 0, len(s.committed)+len(s.pending)+len(req.Inputs))
	prompt = append(prompt, s.committed...)
	if !req.Replace {
		prompt = append(prompt, s.pending...)
	}
	prompt = append(prompt, req.Inputs...)
	if len(prompt) == 0 {
		return nil, errors.New("llamaserver: nothing to condition on")
	}
	n := req.MaxNewTokens
	if room := s.maxLength - len(prompt); n > room {
		n = room
	}
	if n <= 0 {
		return nil, errors.Errorf("session context of %d tokens is full", s.maxLength)
	}

	payload := completionRequest{
		Prompt:       prompt,
		NPredict:     n,
		CachePrompt:  true,
		IDSlot:       -1,
		ReturnTokens: true,
		Stream:       true,
	}
	if req.Params.DoSample {
		payload.Temperature = req.Params.Temperature
		payload.TopK = req.Params.TopK
		payload.TopP = req.Params.TopP
	} else {
		payload.TopK = 1
	}

	out, err := c.complete(ctx, payload)
	if err != nil {
		return nil, err
	}
	if len(out) > n {
		out = out[:n]
	}
	if len(out) > 0 {
		s.committed = append(s.committed[:0:0], prompt...)
		s.committed = append(s.committed, out[:len(out)-1]...)
		s.pending = []int{out[len(out)-1]}
	} else {
		s.committed = prompt
		s.pending = nil
	}
	return out, nil
}

func (c *Client) complete(ctx context.Context, payload completionRequest) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()
	resp, err := c.post(ctx, "/completion", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tokens []int
	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(line[len("data:"):])
			if data == "[DONE]" {
				break
			}
			var msg completionChunk
			if jerr := json.Unmarshal([]byte(data), &msg); jerr != nil {
				log.Warn().Str("engine", "llama-server").Str("line", line).Msg("unknown stream line")
			} else {
				tokens = append(tokens, msg.Tokens...)
				if msg.Stop {
					break
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return tokens, ctx.Err()
			}
			return tokens, errors.Wrap(err, "read completion stream")
		}
	}
	return tokens, nil
}

// Encode tokenizes text without adding special tokens.
func (c *Client) Encode(text string) ([]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.reqTimeout)
	defer cancel()
	resp, err := c.post(ctx, "/tokenize", map[string]any{"content": text, "add_special": false})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out struct {
		Tokens []int `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode tokenize response")
	}
	return out.Tokens, nil
}

// Decode renders ids; bytes of a split codepoint come back as U+FFFD.
func (c *Client) Decode(ids []int) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.reqTimeout)
	defer cancel()
	resp, err := c.post(ctx, "/detokenize", map[string]any{"tokens": ids})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode detokenize response")
	}
	return strings.ToValidUTF8(out.Content, "\uFFFD"), nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(err, "llama-server %s", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, errors.Errorf("llama-server %s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
	return resp, nil
}

// Ping checks that the server answers /health.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "llama-server health")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("llama-server health: %s", resp.Status)
	}
	return nil
}
