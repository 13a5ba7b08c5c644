package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"inferd/internal/engine/enginetest"
)

func TestGetAndTouch_UnknownAndExpired(t *testing.T) {
	eng := &enginetest.Engine{}
	m, clk := newTestManager(t, eng, ManagerConfig{SessionTTL: time.Minute})

	if _, err := m.GetAndTouch("missing"); !IsSessionNotFound(err) {
		t.Fatalf("missing session: %v", err)
	}
	id, _ := m.Open(context.Background(), "m", 8)
	clk.Advance(59 * time.Second)
	if _, err := m.GetAndTouch(id); err != nil {
		t.Fatalf("live session: %v", err)
	}
	// The touch above pushed expiry to +59s+60s.
	clk.Advance(60 * time.Second)
	if _, ok := m.ExpiresAt(id); ok {
		t.Fatalf("expired but unswept session reported live")
	}
	if _, err := m.GetAndTouch(id); !IsSessionNotFound(err) {
		t.Fatalf("expired session: %v", err)
	}
}

func TestGetAndTouch_ExpiryStrictlyIncreases(t *testing.T) {
	eng := &enginetest.Engine{}
	m, clk := newTestManager(t, eng, ManagerConfig{SessionTTL: time.Minute})
	id, _ := m.Open(context.Background(), "m", 8)

	prev, _ := m.ExpiresAt(id)
	for i := 0; i < 5; i++ {
		// Frozen clock: every touch must still move the deadline forward.
		if _, err := m.GetAndTouch(id); err != nil {
			t.Fatalf("touch: %v", err)
		}
		next, _ := m.ExpiresAt(id)
		if !next.After(prev) {
			t.Fatalf("expiry did not increase: %v -> %v", prev, next)
		}
		prev = next
	}
	clk.Advance(10 * time.Second)
	_, _ = m.GetAndTouch(id)
	next, _ := m.ExpiresAt(id)
	if want := clk.Now().Add(time.Minute); !next.Equal(want) {
		t.Fatalf("expiry %v, want %v", next, want)
	}
}

func TestClose_ReleasesHandleOnce(t *testing.T) {
	eng := &enginetest.Engine{Stream: byteStream("hi")}
	m, _ := newTestManager(t, eng, ManagerConfig{MaxSessions: 1})
	id, _ := m.Open(context.Background(), "m", 8)

	if err := m.Close(id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close(id); !IsSessionNotFound(err) {
		t.Fatalf("second close: %v", err)
	}
	if _, err := collect(t, m, id, GenerateRequest{}); !IsSessionNotFound(err) {
		t.Fatalf("generate after close: %v", err)
	}
	if opened, closed := eng.Opened(); opened != 1 || closed != 1 {
		t.Fatalf("opened=%d closed=%d", opened, closed)
	}
	if eng.DoubleCloses() != 0 {
		t.Fatalf("handle released twice")
	}
	if _, err := m.Open(context.Background(), "m", 8); err != nil {
		t.Fatalf("slot not returned: %v", err)
	}
}

func TestClose_ExpiredSessionIsReleasedAndNotFound(t *testing.T) {
	eng := &enginetest.Engine{}
	m, clk := newTestManager(t, eng, ManagerConfig{MaxSessions: 1, SessionTTL: time.Minute})
	id, _ := m.Open(context.Background(), "m", 8)
	clk.Advance(time.Minute)

	if err := m.Close(id); !IsSessionNotFound(err) {
		t.Fatalf("close expired: %v", err)
	}
	if _, closed := eng.Opened(); closed != 1 {
		t.Fatalf("handle not released")
	}
	if m.Len() != 0 {
		t.Fatalf("session still registered")
	}
}

func TestClose_WaitsForInflightGenerate(t *testing.T) {
	eng := &enginetest.Engine{Stream: byteStream("hello"), Delay: 50 * time.Millisecond}
	m, _ := newTestManager(t, eng, ManagerConfig{})
	id, _ := m.Open(context.Background(), "m", 16)

	done := make(chan error, 1)
	go func() {
		_, err := collect(t, m, id, GenerateRequest{MaxNewTokens: intPtr(3)})
		done <- err
	}()
	waitFor(t, func() bool { return eng.Calls() > 0 })
	if err := m.Close(id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("in-flight generate failed: %v", err)
	}
	if eng.DoubleCloses() != 0 {
		t.Fatalf("handle released twice")
	}
}

func TestSweep_SkipsBusySessions(t *testing.T) {
	eng := &enginetest.Engine{Stream: byteStream("hello"), Delay: 100 * time.Millisecond}
	m, clk := newTestManager(t, eng, ManagerConfig{SessionTTL: time.Minute})
	busy, _ := m.Open(context.Background(), "m", 16)
	idle, _ := m.Open(context.Background(), "m", 16)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := collect(t, m, busy, GenerateRequest{MaxNewTokens: intPtr(2)}); err != nil {
			t.Errorf("generate: %v", err)
		}
	}()
	waitFor(t, func() bool { return eng.Calls() > 0 })

	clk.Advance(2 * time.Minute)
	if n := m.Sweep(clk.Now()); n != 1 {
		t.Fatalf("swept %d, want only the idle session", n)
	}
	if _, ok := m.ExpiresAt(idle); ok {
		t.Fatalf("idle session survived the sweep")
	}
	wg.Wait()

	// Finishing the request refreshed the busy session.
	if n := m.Sweep(clk.Now()); n != 0 {
		t.Fatalf("swept %d right after generate", n)
	}
	clk.Advance(time.Minute)
	if n := m.Sweep(clk.Now()); n != 1 {
		t.Fatalf("swept %d after idling", n)
	}
	if eng.DoubleCloses() != 0 {
		t.Fatalf("handle released twice")
	}
}

func TestRun_ClosesEverythingOnShutdown(t *testing.T) {
	eng := &enginetest.Engine{}
	m, _ := newTestManager(t, eng, ManagerConfig{SweepInterval: 10 * time.Millisecond})
	for i := 0; i < 3; i++ {
		if _, err := m.Open(context.Background(), "m", 8); err != nil {
			t.Fatalf("open: %v", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return")
	}
	if m.Len() != 0 {
		t.Fatalf("sessions left: %d", m.Len())
	}
	if opened, closed := eng.Opened(); opened != closed {
		t.Fatalf("opened=%d closed=%d", opened, closed)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
