package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rcliao/lattice-memory/internal/llm"
	"github.com/rcliao/lattice-memory/internal/model"
)

const classifyPrompt = `Classify the user's latest message for a memory-backed assistant.

Intents:
- recall: asks about something said in an earlier conversation
- new_topic: starts something new; older history is not needed
- clarification: follows up on the assistant's immediately preceding reply
- multi_hop: needs several earlier facts connected together

Reply with exactly one line: <intent>|<confidence between 0 and 1>
Example: recall|0.8`

// Model classifies with the reasoning service and falls back to the
// heuristic on any failure.
type Model struct {
	reasoner  llm.Completer
	fallback  *Heuristic
	logger    *slog.Logger
	maxRecent int
}

// NewModel creates a model-driven classifier.
func NewModel(reasoner llm.Completer, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{reasoner: reasoner, fallback: NewHeuristic(), logger: logger, maxRecent: 4}
}

// Classify never returns an error: reasoning failures degrade to the
// heuristic result with Degraded set.
func (m *Model) Classify(ctx context.Context, message string, recent []model.Turn) (Result, error) {
	reply, err := llm.Ask(ctx, m.reasoner, classifyPrompt, m.prompt(message, recent), 20)
	if err == nil {
		in, conf, perr := parseReply(reply)
		if perr == nil {
			return Result{Intent: in, Confidence: conf, Terms: keyTerms(message), Strategy: ModeModel}, nil
		}
		err = perr
	}

	m.logger.Warn("intent model classification failed, using heuristic", "err", err)
	res := m.fallback.classify(message, recent)
	res.Degraded = true
	return res, nil
}

func (m *Model) prompt(message string, recent []model.Turn) string {
	var b strings.Builder
	if n := len(recent); n > 0 {
		start := 0
		if n > m.maxRecent {
			start = n - m.maxRecent
		}
		b.WriteString("Recent conversation:\n")
		for _, t := range recent[start:] {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("Latest message: ")
	b.WriteString(message)
	return b.String()
}

// parseReply reads "intent|confidence" from the first non-empty line.
func parseReply(reply string) (Intent, float64, error) {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "`*\"'")
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		in, err := Parse(parts[0])
		if err != nil {
			return "", 0, err
		}
		conf := 0.7
		if len(parts) == 2 {
			c, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err != nil {
				return "", 0, fmt.Errorf("bad confidence %q: %w", parts[1], err)
			}
			conf = clamp(c)
		}
		return in, conf, nil
	}
	return "", 0, fmt.Errorf("empty classification reply")
}

func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
