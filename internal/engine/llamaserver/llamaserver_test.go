package llamaserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inferd/internal/engine"
)

// fakeServer mimics llama-server's native endpoints. Every completion streams
// next, next+1, ... one token per SSE event.
type fakeServer struct {
	mu      sync.Mutex
	next    int
	prompts [][]int
	bodies  []completionRequest
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.prompts = append(f.prompts, req.Prompt)
		f.bodies = append(f.bodies, req)
		start := f.next
		f.next += req.NPredict
		f.mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < req.NPredict; i++ {
			msg := completionChunk{Tokens: []int{start + i}, Stop: i == req.NPredict-1}
			b, _ := json.Marshal(msg)
			fmt.Fprintf(w, "data: %s\n\n", b)
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
		}
	})
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		ids := make([]int, len(req.Content))
		for i := range req.Content {
			ids[i] = int(req.Content[i])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tokens": ids})
	})
	mux.HandleFunc("/detokenize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tokens []int `json:"tokens"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		b := make([]byte, len(req.Tokens))
		for i, id := range req.Tokens {
			b[i] = byte(id)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"content": string(b)})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	fs := &fakeServer{next: 100}
	ts := httptest.NewServer(fs.handler())
	t.Cleanup(ts.Close)
	return New(Options{BaseURL: ts.URL, RequestTimeout: 5 * time.Second}), fs
}

func TestGenerateReplaysContextAndPending(t *testing.T) {
	c, fs := newTestClient(t)
	ctx := context.Background()
	h, err := c.OpenSession(ctx, "m", 64)
	require.NoError(t, err)

	out, err := c.Generate(ctx, h, engine.Request{Inputs: []int{1, 2}, MaxNewTokens: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 101, 102}, out)

	// Next step feeds the held token 102 before the new inputs.
	out, err = c.Generate(ctx, h, engine.Request{Inputs: []int{7}, MaxNewTokens: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{103}, out)

	// Replace swaps the held token 103 for 9.
	_, err = c.Generate(ctx, h, engine.Request{Inputs: []int{9}, MaxNewTokens: 1, Replace: true})
	require.NoError(t, err)

	require.Len(t, fs.prompts, 3)
	assert.Equal(t, []int{1, 2}, fs.prompts[0])
	assert.Equal(t, []int{1, 2, 100, 101, 102, 7}, fs.prompts[1])
	assert.Equal(t, []int{1, 2, 100, 101, 102, 7, 9}, fs.prompts[2])
	assert.True(t, fs.bodies[0].CachePrompt)
	assert.Equal(t, 1, fs.bodies[0].TopK)
}

func TestGenerateClampsToMaxLength(t *testing.T) {
	c, fs := newTestClient(t)
	ctx := context.Background()
	h, err := c.OpenSession(ctx, "m", 4)
	require.NoError(t, err)

	out, err := c.Generate(ctx, h, engine.Request{Inputs: []int{1, 2}, MaxNewTokens: 10})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 2, fs.bodies[0].NPredict)

	_, err = c.Generate(ctx, h, engine.Request{Inputs: []int{3}, MaxNewTokens: 1})
	assert.Error(t, err)
}

func TestSamplingParamsForwarded(t *testing.T) {
	c, fs := newTestClient(t)
	ctx := context.Background()
	h, _ := c.OpenSession(ctx, "m", 16)
	_, err := c.Generate(ctx, h, engine.Request{
		Inputs:       []int{1},
		MaxNewTokens: 1,
		Params:       engine.SamplingParams{DoSample: true, Temperature: 0.7, TopK: 40, TopP: 0.9},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, fs.bodies[0].Temperature, 1e-6)
	assert.Equal(t, 40, fs.bodies[0].TopK)
	assert.InDelta(t, 0.9, fs.bodies[0].TopP, 1e-6)
}

func TestTokenizeRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ids, err := c.Encode("hi")
	require.NoError(t, err)
	assert.Equal(t, []int{'h', 'i'}, ids)
	text, err := c.Decode(ids)
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func TestCloseTwiceFails(t *testing.T) {
	c, _ := newTestClient(t)
	h, _ := c.OpenSession(context.Background(), "m", 8)
	require.NoError(t, c.CloseSession(h))
	assert.Error(t, c.CloseSession(h))
	_, err := c.Generate(context.Background(), h, engine.Request{Inputs: []int{1}, MaxNewTokens: 1})
	assert.Error(t, err)
}

func TestHTTPErrorSurfaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()
	c := New(Options{BaseURL: ts.URL})
	h, _ := c.OpenSession(context.Background(), "m", 8)
	_, err := c.Generate(context.Background(), h, engine.Request{Inputs: []int{1}, MaxNewTokens: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Error(t, c.Ping(context.Background()))
}

func TestPing(t *testing.T) {
	c, _ := newTestClient(t)
	assert.NoError(t, c.Ping(context.Background()))
}
