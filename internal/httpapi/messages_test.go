package httpapi

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

func TestDecodeClientMessage(t *testing.T) {
	msg, err := decodeClientMessage([]byte(`{"type":"generate","inputs":"hi","do_sample":1,"top_k":5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != types.MsgGenerate || msg.Inputs == nil || *msg.Inputs != "hi" || !bool(msg.DoSample) || *msg.TopK != 5 {
		t.Fatalf("msg: %+v", msg)
	}

	for _, raw := range []string{`nope`, `{"type":"dance"}`, `{}`} {
		_, err := decodeClientMessage([]byte(raw))
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: want protocol error, got %v", raw, err)
		}
	}
}

func TestWSGenerateRequest_Defaults(t *testing.T) {
	req, err := wsGenerateRequest(types.ClientMessage{Type: types.MsgGenerate})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if req.Params.Temperature != 1 || req.Params.TopP != 1 || req.Params.TopK != 0 || req.Params.DoSample {
		t.Fatalf("params: %+v", req.Params)
	}
	if req.Inputs != nil || req.StopSequence != nil || req.MaxNewTokens != nil {
		t.Fatalf("optional fields set: %+v", req)
	}
}

func TestWSGenerateRequest_Validation(t *testing.T) {
	neg := -1
	negF := float32(-0.5)
	zero := 0
	cases := []types.ClientMessage{
		{TopK: &neg},
		{Temperature: &negF},
		{MaxNewTokens: &zero},
		{MaxLength: &neg},
	}
	for _, msg := range cases {
		if _, err := wsGenerateRequest(msg); !manager.IsValidation(err) {
			t.Fatalf("%+v: want validation error, got %v", msg, err)
		}
	}
}

func TestRequestLogLevel(t *testing.T) {
	r := httptest.NewRequest("GET", "/status?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override: %v", got)
	}
	r = httptest.NewRequest("GET", "/status", nil)
	r.Header.Set("X-Log-Level", "off")
	if got := requestLogLevel(r); got != LevelOff {
		t.Fatalf("header override: %v", got)
	}
	if rl := newReqLogger(r); rl.Info() != nil || rl.Error() != nil {
		t.Fatalf("events emitted while logging is off")
	}
	if got := parseLevel("bogus"); got != LevelInfo {
		t.Fatalf("unknown level: %v", got)
	}
}

func TestJoinContexts(t *testing.T) {
	a, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	b := context.Background()
	ctx, cancel := joinContexts(a, b)
	defer cancel()
	cancelA()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("joined context not canceled")
	}
}
