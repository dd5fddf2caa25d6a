// Package llm defines the completion interface shared by the chat path and
// the reasoning calls (intent classification, fact extraction, profile
// summaries).
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrUnavailable marks a provider that could not be reached or is down.
	ErrUnavailable = errors.New("llm: provider unavailable")
	// ErrRateLimit marks a provider rejecting the call for rate reasons.
	ErrRateLimit = errors.New("llm: rate limited")
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Message is one conversational message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request. System is sent separately from Messages.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// Response is a completion result.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Completer produces completions.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// Func adapts a function to Completer.
type Func func(ctx context.Context, req Request) (*Response, error)

func (f Func) Complete(ctx context.Context, req Request) (*Response, error) { return f(ctx, req) }

func (f Func) Model() string { return "func" }

// Ask sends a single user prompt with an optional system prompt and returns
// the text of the reply.
func Ask(ctx context.Context, c Completer, system, prompt string, maxTokens int) (string, error) {
	resp, err := c.Complete(ctx, Request{
		System:    system,
		Messages:  []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}

type timeoutCompleter struct {
	inner   Completer
	timeout time.Duration
}

// WithTimeout bounds every call to c. A deadline hit is reported as
// ErrUnavailable. d <= 0 returns c unchanged.
func WithTimeout(c Completer, d time.Duration) Completer {
	if c == nil || d <= 0 {
		return c
	}
	return &timeoutCompleter{inner: c, timeout: d}
}

func (t *timeoutCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	resp, err := t.inner.Complete(ctx, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: timed out after %s: %v", ErrUnavailable, t.timeout, err)
	}
	return resp, err
}

func (t *timeoutCompleter) Model() string { return t.inner.Model() }
