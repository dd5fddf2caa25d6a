package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsk(t *testing.T) {
	var got Request
	c := Func(func(_ context.Context, req Request) (*Response, error) {
		got = req
		return &Response{Content: "pong"}, nil
	})

	out, err := Ask(context.Background(), c, "be brief", "ping", 16)
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
	assert.Equal(t, "be brief", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, RoleUser, got.Messages[0].Role)
	assert.Equal(t, 16, got.MaxTokens)
}

func TestAsk_EmptyResponse(t *testing.T) {
	c := Func(func(context.Context, Request) (*Response, error) { return &Response{}, nil })
	_, err := Ask(context.Background(), c, "", "x", 0)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _ Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	c := WithTimeout(slow, 20*time.Millisecond)
	start := time.Now()
	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, time.Since(start) < time.Second)
}

func TestWithTimeout_PassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	c := WithTimeout(Func(func(context.Context, Request) (*Response, error) { return nil, boom }), time.Second)
	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestWithTimeout_ZeroIsIdentity(t *testing.T) {
	c := Func(func(context.Context, Request) (*Response, error) { return nil, nil })
	assert.Equal(t, "func", WithTimeout(c, 0).Model())
	assert.Nil(t, WithTimeout(nil, time.Second))
}
