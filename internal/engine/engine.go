// Package engine runs the per-message pipeline: persist, classify, plan,
// retrieve, hydrate, complete, persist and index.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/lattice-memory/internal/chunker"
	"github.com/rcliao/lattice-memory/internal/crawler"
	"github.com/rcliao/lattice-memory/internal/embedding"
	"github.com/rcliao/lattice-memory/internal/governor"
	"github.com/rcliao/lattice-memory/internal/hydrator"
	"github.com/rcliao/lattice-memory/internal/intent"
	"github.com/rcliao/lattice-memory/internal/llm"
	"github.com/rcliao/lattice-memory/internal/metrics"
	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/store"
	"github.com/rcliao/lattice-memory/internal/synthesis"
	"github.com/rcliao/lattice-memory/internal/tokenizer"
	"github.com/rcliao/lattice-memory/internal/window"
)

var (
	// ErrEmptyMessage is returned for a blank message. Nothing is persisted.
	ErrEmptyMessage = errors.New("engine: empty message")
	// ErrMessageTooLarge is returned for a message longer than the chunker's
	// MaxSize. Nothing is persisted. It wraps chunker.ErrTextTooLarge.
	ErrMessageTooLarge = fmt.Errorf("engine: message too large: %w", chunker.ErrTextTooLarge)
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	DefaultContextBudget     = 12000
	DefaultMaxResponseTokens = 1024
	DefaultEmbedConcurrency  = 4
	DefaultSystemPrompt      = "You are a helpful assistant with long-term memory of earlier conversations with this user."
)

// Response is the result of one ProcessMessage call.
type Response struct {
	Content  string                `json:"content"`
	Status   string                `json:"status"`
	Intent   intent.Result         `json:"intent"`
	Plan     model.RetrievalPlan   `json:"plan"`
	Metadata Metadata              `json:"metadata"`
	Context  model.HydratedContext `json:"-"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	SessionID       string        `json:"session_id"`
	UserTurnID      string        `json:"user_turn_id"`
	AssistantTurnID string        `json:"assistant_turn_id,omitempty"`
	Model           string        `json:"model,omitempty"`
	Retrieved       int           `json:"retrieved"`
	ContextTokens   int           `json:"context_tokens"`
	ContextBudget   int           `json:"context_budget"`
	Dropped         int           `json:"dropped"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Config holds the engine's tunables.
type Config struct {
	ContextBudget     int
	MaxResponseTokens int
	SystemPrompt      string
	Chunking          chunker.Options
	EmbedConcurrency  int
	WindowPath        string
	DBPath            string
}

// Deps are the collaborators the engine drives. Turns, Index, Window and
// Completer are required; Embedder and Worker may be nil.
type Deps struct {
	Turns     store.TurnStore
	Index     store.NodeIndex
	Embedder  embedding.Embedder
	Completer llm.Completer
	Reasoner  llm.Completer
	Analyzer  intent.Analyzer
	Governor  *governor.Governor
	Crawler   *crawler.Crawler
	Hydrator  *hydrator.Hydrator
	Counter   tokenizer.Counter
	Window    *window.Window
	Worker    *synthesis.Worker
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Engine is the conversation engine. ProcessMessage calls are expected to be
// sequential; the window and worker tolerate concurrent readers.
type Engine struct {
	cfg       Config
	deps      Deps
	sessionID string
	logger    *slog.Logger
}

// New checks the required collaborators and fills defaults.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Turns == nil || deps.Index == nil || deps.Window == nil {
		return nil, fmt.Errorf("engine: turn store, index and window are required")
	}
	if deps.Completer == nil {
		return nil, fmt.Errorf("engine: completion provider is required")
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = DefaultContextBudget
	}
	if cfg.MaxResponseTokens <= 0 {
		cfg.MaxResponseTokens = DefaultMaxResponseTokens
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Chunking == (chunker.Options{}) {
		cfg.Chunking = chunker.DefaultOptions()
	}
	if err := cfg.Chunking.Validate(); err != nil {
		return nil, err
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = DefaultEmbedConcurrency
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Counter == nil {
		deps.Counter = tokenizer.NewCharEstimator(4)
	}
	if deps.Analyzer == nil {
		deps.Analyzer = intent.NewHeuristic()
	}
	if deps.Governor == nil {
		deps.Governor = governor.Default()
	}
	if deps.Hydrator == nil {
		deps.Hydrator = hydrator.New(deps.Counter)
	}
	if deps.Crawler == nil {
		c, err := crawler.New(deps.Index, deps.Embedder, crawler.DefaultConfig(),
			crawler.WithLogger(deps.Logger), crawler.WithMetrics(deps.Metrics))
		if err != nil {
			return nil, err
		}
		deps.Crawler = c
	}

	id := uuid.NewString()
	return &Engine{
		cfg:       cfg,
		deps:      deps,
		sessionID: id,
		logger:    deps.Logger.With("session", id),
	}, nil
}

// SessionID identifies this engine instance in logs and metadata.
func (e *Engine) SessionID() string { return e.sessionID }

type callOptions struct {
	forced intent.Intent
}

// Option adjusts a single ProcessMessage call.
type Option func(*callOptions)

// WithForcedIntent skips classification and plans for in.
func WithForcedIntent(in intent.Intent) Option {
	return func(o *callOptions) { o.forced = in }
}

// ProcessMessage answers one user message. The user turn is persisted before
// anything else. When completion fails the response carries StatusError,
// the error is returned and no assistant turn is written.
func (e *Engine) ProcessMessage(ctx context.Context, message string, opts ...Option) (*Response, error) {
	start := time.Now()
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if limit := e.cfg.Chunking.MaxSize; limit > 0 && len(message) > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, len(message), limit)
	}
	var co callOptions
	for _, o := range opts {
		o(&co)
	}

	userTurn, err := e.deps.Turns.AppendTurn(ctx, store.TurnParams{Role: model.RoleUser, Text: message})
	if err != nil {
		return nil, fmt.Errorf("persist user turn: %w", err)
	}
	e.deps.Metrics.TurnPersisted(string(model.RoleUser))
	log := e.logger.With("turn", userTurn.ID)

	recent := e.deps.Window.Turns()
	res := e.classify(ctx, message, recent, co)
	e.deps.Metrics.Intent(string(res.Intent), res.Strategy)

	profile := e.profileText()
	plan := e.deps.Governor.DecideResult(res, e.retrievalBudget(recent, profile))

	nodes, err := e.deps.Crawler.Search(ctx, message, plan)
	if err != nil {
		log.Warn("retrieval failed, continuing without memories", "err", err)
		e.deps.Metrics.Fallback("index")
		nodes = nil
	}
	e.deps.Metrics.Retrieval(plan.HopCount, len(nodes))

	hc := e.deps.Hydrator.Hydrate(recent, nodes, profile, e.cfg.ContextBudget)
	e.deps.Metrics.Hydrated(hc.TotalTokens, hc.Dropped)
	log.Debug("context hydrated",
		"intent", res.Intent, "confidence", res.Confidence, "hops", plan.HopCount,
		"retrieved", len(nodes), "tokens", hc.TotalTokens, "dropped", hc.Dropped)

	resp := &Response{
		Status:  StatusError,
		Intent:  res,
		Plan:    plan,
		Context: hc,
		Metadata: Metadata{
			SessionID:     e.sessionID,
			UserTurnID:    userTurn.ID,
			Model:         e.deps.Completer.Model(),
			Retrieved:     len(nodes),
			ContextTokens: hc.TotalTokens,
			ContextBudget: hc.Budget,
			Dropped:       hc.Dropped,
		},
	}

	callStart := time.Now()
	out, err := e.deps.Completer.Complete(ctx, e.request(hc, plan, message))
	if err == nil && (out == nil || strings.TrimSpace(out.Content) == "") {
		err = llm.ErrEmptyResponse
	}
	e.deps.Metrics.Completion(time.Since(callStart).Seconds(), err)
	if err != nil {
		e.remember(ctx, *userTurn)
		resp.Metadata.Elapsed = time.Since(start)
		return resp, fmt.Errorf("completion: %w", err)
	}
	if out.Model != "" {
		resp.Metadata.Model = out.Model
	}

	asstTurn, err := e.deps.Turns.AppendTurn(ctx, store.TurnParams{Role: model.RoleAssistant, Text: out.Content})
	if err != nil {
		e.remember(ctx, *userTurn)
		resp.Content = out.Content
		resp.Metadata.Elapsed = time.Since(start)
		return resp, fmt.Errorf("persist assistant turn: %w", err)
	}
	e.deps.Metrics.TurnPersisted(string(model.RoleAssistant))

	e.remember(ctx, *userTurn, *asstTurn)

	resp.Content = out.Content
	resp.Status = StatusSuccess
	resp.Metadata.AssistantTurnID = asstTurn.ID
	resp.Metadata.Elapsed = time.Since(start)
	return resp, nil
}

func (e *Engine) classify(ctx context.Context, message string, recent []model.Turn, co callOptions) intent.Result {
	if co.forced != "" {
		return intent.Forced(co.forced, message)
	}
	res, err := e.deps.Analyzer.Classify(ctx, message, recent)
	if err != nil {
		e.logger.Warn("intent classification failed, treating as new topic", "err", err)
		e.deps.Metrics.Fallback("intent")
		return intent.Result{Intent: intent.NewTopic, Strategy: intent.ModeHeuristic, Degraded: true}
	}
	return res
}

// retrievalBudget is what is left for memories once the window and profile
// are charged exactly as the hydrator will charge them.
func (e *Engine) retrievalBudget(recent []model.Turn, profile string) int {
	used := e.deps.Hydrator.ProfileTokens(profile)
	for _, t := range recent {
		used += e.deps.Hydrator.TurnTokens(t)
	}
	return max(e.cfg.ContextBudget-used, 0)
}

func (e *Engine) request(hc model.HydratedContext, plan model.RetrievalPlan, message string) llm.Request {
	background, msgs := hydrator.Messages(hc)

	system := e.cfg.SystemPrompt
	if plan.Guidance != "" {
		system += "\n\n" + plan.Guidance
	}
	if background != "" {
		system += "\n\nRelevant memory:\n" + background
	}

	if n := len(msgs); n > 0 && msgs[n-1].Role == llm.RoleUser {
		msgs[n-1].Content += "\n\n" + message
	} else {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
	}
	return llm.Request{System: system, Messages: msgs, MaxTokens: e.cfg.MaxResponseTokens}
}

// remember indexes the turns, adds them to the window and queues user turns
// for fact synthesis. Failures here never reach the caller.
func (e *Engine) remember(ctx context.Context, turns ...model.Turn) {
	for _, t := range turns {
		if err := e.index(ctx, t); err != nil {
			e.logger.Warn("indexing turn failed", "turn", t.ID, "err", err)
			e.deps.Metrics.Fallback("embedding")
		}
		e.deps.Window.Add(t)
		if t.Role == model.RoleUser && e.deps.Worker != nil {
			e.deps.Worker.Enqueue(t)
		}
	}
}

// RecentTurns returns up to limit turns across all days, newest last.
func (e *Engine) RecentTurns(ctx context.Context, limit int) ([]model.Turn, error) {
	return e.deps.Turns.RecentTurns(ctx, "", limit)
}

// ClearSlidingWindow empties the in-memory window. Persisted turns stay.
func (e *Engine) ClearSlidingWindow() {
	e.deps.Window.Clear()
	e.logger.Info("sliding window cleared")
}

// Window returns a copy of the current window.
func (e *Engine) Window() []model.Turn { return e.deps.Window.Turns() }

// Profile returns the current user profile; empty without a worker.
func (e *Engine) Profile() synthesis.UserProfile {
	if e.deps.Worker == nil {
		return synthesis.UserProfile{}
	}
	return e.deps.Worker.Profile()
}

func (e *Engine) profileText() string {
	return e.Profile().Text()
}

// SaveWindow writes the window snapshot if a path is configured.
func (e *Engine) SaveWindow() error {
	if e.cfg.WindowPath == "" {
		return nil
	}
	return e.deps.Window.Save(e.cfg.WindowPath)
}

// Close saves the window, drains the synthesis worker and closes the store.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if err := e.SaveWindow(); err != nil {
		errs = append(errs, fmt.Errorf("save window: %w", err))
	}
	if e.deps.Worker != nil {
		if err := e.deps.Worker.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain synthesis: %w", err))
		}
	}
	if err := e.deps.Turns.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
