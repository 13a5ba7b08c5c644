package echo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inferd/internal/engine"
)

func TestEchoRepeatsInputs(t *testing.T) {
	e := New(0)
	ctx := context.Background()
	h, err := e.OpenSession(ctx, "echo", 64)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Open())

	out, err := e.Generate(ctx, h, engine.Request{Inputs: []int{1, 2, 3}, MaxNewTokens: 5})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 1, 2}, out)

	out, err = e.Generate(ctx, h, engine.Request{MaxNewTokens: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, out)

	require.NoError(t, e.CloseSession(h))
	assert.Equal(t, 0, e.Open())
	assert.Error(t, e.CloseSession(h))
}

func TestEchoStopsAtMaxLength(t *testing.T) {
	e := New(0)
	ctx := context.Background()
	h, _ := e.OpenSession(ctx, "echo", 6)

	// 2 inputs leave room for 4 new tokens.
	out, err := e.Generate(ctx, h, engine.Request{Inputs: []int{7, 8}, MaxNewTokens: 10})
	require.NoError(t, err)
	assert.Len(t, out, 4)

	// The held token fills the last slot.
	out, err = e.Generate(ctx, h, engine.Request{MaxNewTokens: 1})
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = e.Generate(ctx, h, engine.Request{Inputs: []int{1}, MaxNewTokens: 1})
	assert.Error(t, err)
}

func TestEchoWithoutInputsYieldsNothing(t *testing.T) {
	e := New(0)
	h, _ := e.OpenSession(context.Background(), "echo", 8)
	out, err := e.Generate(context.Background(), h, engine.Request{MaxNewTokens: 3})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEchoHonoursContext(t *testing.T) {
	e := New(50 * time.Millisecond)
	h, _ := e.OpenSession(context.Background(), "echo", 8)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := e.Generate(ctx, h, engine.Request{Inputs: []int{1}, MaxNewTokens: 3})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
