package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"inferd/internal/engine/enginetest"
	"inferd/internal/registry"
	"inferd/internal/tokenizer"
)

func TestStatus_Counts(t *testing.T) {
	eng := &enginetest.Engine{}
	m, clk := newTestManager(t, eng, ManagerConfig{MaxSessions: 2, SessionTTL: time.Minute})

	a, _ := m.Open(context.Background(), "m", 8)
	_, _ = m.Open(context.Background(), "m", 8)
	_, _ = m.Open(context.Background(), "m", 8)
	_ = m.Close(a)
	clk.Advance(30 * time.Second)

	st := m.Status()
	if st.LiveSessions != 1 || st.MaxSessions != 2 || st.SessionTTLSeconds != 60 {
		t.Fatalf("status: %+v", st)
	}
	if st.OpenedTotal != 2 || st.ClosedTotal != 1 || st.RejectedTotal != 1 || st.ExpiredTotal != 0 {
		t.Fatalf("counters: %+v", st)
	}
	if st.UptimeSeconds != 30 || st.ServerTimeUnix != clk.Now().Unix() {
		t.Fatalf("clock fields: %+v", st)
	}
	if len(st.Models) != 1 || st.Models[0].Key != "m" || st.Models[0].LiveSessions != 1 {
		t.Fatalf("models: %+v", st.Models)
	}

	// Past its deadline the session no longer counts, even before a sweep.
	clk.Advance(time.Minute)
	st = m.Status()
	if st.LiveSessions != 0 || len(st.Models) != 1 || st.Models[0].LiveSessions != 0 {
		t.Fatalf("expired session counted: %+v", st)
	}
	snaps := m.Snapshots()
	if len(snaps) != 1 || !snaps[0].Expired || snaps[0].Busy {
		t.Fatalf("snapshots: %+v", snaps)
	}
}

type pingEngine struct {
	*enginetest.Engine
	err error
}

func (p pingEngine) Ping(context.Context) error { return p.err }

func TestSanityCheck(t *testing.T) {
	down := pingEngine{Engine: &enginetest.Engine{}, err: errors.New("connection refused")}
	r, err := registry.New([]registry.Model{
		{Key: "a", Engine: &enginetest.Engine{}, Tokenizer: tokenizer.Bytes{}, PublicAPI: true},
		{Key: "b", Engine: down, Tokenizer: tokenizer.Bytes{}, PublicAPI: false},
	}, "a")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	m := New(r)
	rep := m.SanityCheck(context.Background())
	if rep.OK {
		t.Fatalf("want not ok: %+v", rep)
	}
	if len(rep.Models) != 2 {
		t.Fatalf("models: %+v", rep.Models)
	}
	if rep.Models[0].Key != "a" || !rep.Models[0].Reachable {
		t.Fatalf("model a: %+v", rep.Models[0])
	}
	if rep.Models[1].Key != "b" || rep.Models[1].Reachable || rep.Models[1].Error == "" {
		t.Fatalf("model b: %+v", rep.Models[1])
	}

	down.err = nil
	r2, _ := registry.New([]registry.Model{{Key: "b", Engine: down, Tokenizer: tokenizer.Bytes{}, PublicAPI: true}}, "")
	if rep := New(r2).SanityCheck(context.Background()); !rep.OK {
		t.Fatalf("want ok: %+v", rep)
	}
}
