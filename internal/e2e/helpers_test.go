package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/manager"
	"inferd/internal/registry"
	"inferd/pkg/types"
)

// newServer starts the full HTTP stack over a manager built from cfg. The
// manager's sweeper runs until the test ends.
func newServer(t *testing.T, reg *registry.Registry, cfg manager.ManagerConfig) (*httptest.Server, *manager.Manager) {
	t.Helper()
	cfg.Models = reg
	mgr := manager.NewWithConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = mgr.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, mgr
}

// echoRegistry builds a registry from config entries, defaulting to a single
// echo-backed model.
func echoRegistry(t *testing.T, entries ...config.ModelConfig) *registry.Registry {
	t.Helper()
	if len(entries) == 0 {
		entries = []config.ModelConfig{{Key: "echo", Backend: config.BackendEcho}}
	}
	reg, err := registry.FromConfig(entries, "")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func httpGet(t *testing.T, u string, out any) int {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	decodeBody(t, resp.Body, out)
	return resp.StatusCode
}

func httpPostForm(t *testing.T, u string, form url.Values, out any) int {
	t.Helper()
	resp, err := http.PostForm(u, form)
	if err != nil {
		t.Fatalf("POST %s: %v", u, err)
	}
	defer resp.Body.Close()
	decodeBody(t, resp.Body, out)
	return resp.StatusCode
}

func decodeBody(t *testing.T, r io.Reader, out any) {
	t.Helper()
	b, _ := io.ReadAll(r)
	if out == nil {
		return
	}
	if err := json.Unmarshal(b, out); err != nil {
		t.Fatalf("decode %q: %v", b, err)
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v2/generate", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("send %v: %v", msg, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) types.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f types.Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// readUntilStop collects frames of one generate call.
func readUntilStop(t *testing.T, conn *websocket.Conn) []types.Frame {
	t.Helper()
	var frames []types.Frame
	for {
		f := readFrame(t, conn)
		frames = append(frames, f)
		if !f.OK || f.Stop {
			return frames
		}
	}
}
