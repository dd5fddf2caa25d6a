package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/lattice-memory/internal/llm"
	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/terms"
	"github.com/rcliao/lattice-memory/internal/tokenizer"
)

const (
	DefaultTokenBudget = 800
	// DuplicateThreshold is the token Jaccard at which a new fact counts as
	// already known.
	DuplicateThreshold = 0.8
)

// Summarizer folds facts into an existing summary.
type Summarizer interface {
	Summarize(ctx context.Context, summary string, facts []string) (string, error)
}

// LLMSummarizer asks the reasoning service to rewrite the summary.
type LLMSummarizer struct {
	reasoner llm.Completer
}

func NewLLMSummarizer(reasoner llm.Completer) *LLMSummarizer {
	return &LLMSummarizer{reasoner: reasoner}
}

const summarizePrompt = `You maintain a short profile of a user. Merge the new facts into the
existing summary. Keep every distinct piece of information, drop repetition,
and write plain third-person prose of at most a few sentences. Reply with the
new summary only.`

func (s *LLMSummarizer) Summarize(ctx context.Context, summary string, facts []string) (string, error) {
	prompt := "Existing summary:\n" + summary + "\n\nNew facts:\n- " + strings.Join(facts, "\n- ")
	out, err := llm.Ask(ctx, s.reasoner, summarizePrompt, prompt, 400)
	if err != nil {
		return "", fmt.Errorf("summarize profile: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Manager applies fact deltas to a profile and compacts it under a token
// budget. It does not hold the profile; callers pass it in and keep the
// result.
type Manager struct {
	counter    tokenizer.Counter
	summarizer Summarizer
	budget     int
	logger     *slog.Logger
	now        func() time.Time
}

// ManagerConfig configures a Manager. Summarizer may be nil, in which case
// folded facts are appended to the summary verbatim.
type ManagerConfig struct {
	Counter     tokenizer.Counter
	Summarizer  Summarizer
	TokenBudget int
	Logger      *slog.Logger
	Now         func() time.Time
}

func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		counter:    cfg.Counter,
		summarizer: cfg.Summarizer,
		budget:     cfg.TokenBudget,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if m.counter == nil {
		m.counter = tokenizer.NewCharEstimator(4)
	}
	if m.budget <= 0 {
		m.budget = DefaultTokenBudget
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Tokens returns the rendered size of p.
func (m *Manager) Tokens(p UserProfile) int {
	return m.counter.Count(p.Text())
}

// SummarizerOnline reports whether compaction uses the reasoning service.
func (m *Manager) SummarizerOnline() bool { return m.summarizer != nil }

// Apply appends the facts that are not near-duplicates of ones already
// carried, bumps the version when anything changed, then compacts.
func (m *Manager) Apply(ctx context.Context, existing UserProfile, facts []model.Fact) (UserProfile, error) {
	p := existing.clone()
	added := 0
	for _, f := range facts {
		text := strings.TrimSpace(f.Text)
		if text == "" || m.duplicate(p, text) {
			continue
		}
		id := f.ID
		if id == "" {
			id = ulid.Make().String()
		}
		at := f.ExtractedAt
		if at.IsZero() {
			at = m.now()
		}
		p.Facts = append(p.Facts, ProfileFact{ID: id, Text: text, SourceTurnID: f.SourceTurnID, AddedAt: at.UTC()})
		added++
	}
	if added == 0 {
		return p, nil
	}
	p.Version++
	p.UpdatedAt = m.now().UTC()
	return m.Compact(ctx, p), nil
}

func (m *Manager) duplicate(p UserProfile, text string) bool {
	for _, f := range p.Facts {
		if terms.Jaccard(f.Text, text) >= DuplicateThreshold {
			return true
		}
	}
	return false
}

// Compact shrinks p until it fits the budget. Oldest facts are folded into
// the summary first; summary sentences are trimmed, oldest first, only once
// at most one fact remains.
func (m *Manager) Compact(ctx context.Context, p UserProfile) UserProfile {
	p = p.clone()
	for m.Tokens(p) > m.budget {
		switch {
		case len(p.Facts) > 1:
			n := len(p.Facts) / 2
			p.Summary = m.fold(ctx, p.Summary, p.Facts[:n])
			p.Facts = append([]ProfileFact(nil), p.Facts[n:]...)
		case strings.TrimSpace(p.Summary) != "" && sentenceCount(p.Summary) > 1:
			p.Summary = dropFirstSentence(p.Summary)
		case len(p.Facts) == 1:
			p.Summary = m.fold(ctx, p.Summary, p.Facts)
			p.Facts = nil
		case strings.TrimSpace(p.Summary) != "":
			p.Summary = ""
		default:
			return p
		}
	}
	return p
}

func (m *Manager) fold(ctx context.Context, summary string, facts []ProfileFact) string {
	texts := make([]string, len(facts))
	for i, f := range facts {
		texts[i] = f.Text
	}
	if m.summarizer != nil {
		out, err := m.summarizer.Summarize(ctx, summary, texts)
		if err == nil && out != "" {
			return out
		}
		m.logger.Warn("profile summarizer failed, appending facts verbatim", "err", err)
	}
	parts := []string{}
	if s := strings.TrimSpace(summary); s != "" {
		parts = append(parts, s)
	}
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if !strings.HasSuffix(t, ".") {
			t += "."
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

func sentenceCount(s string) int {
	return len(splitSentences(s))
}

func dropFirstSentence(s string) string {
	parts := splitSentences(s)
	if len(parts) <= 1 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}

func splitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == '!' || s[i] == '?' {
			if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\n' {
				if part := strings.TrimSpace(s[start : i+1]); part != "" {
					out = append(out, part)
				}
				start = i + 1
			}
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		out = append(out, part)
	}
	return out
}
