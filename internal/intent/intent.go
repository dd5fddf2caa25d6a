// Package intent classifies an incoming message into a retrieval intent.
// Two strategies share the Analyzer contract: a keyword heuristic with no
// external calls, and a model-driven classifier that falls back to the
// heuristic whenever the reasoning service fails.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rcliao/lattice-memory/internal/llm"
	"github.com/rcliao/lattice-memory/internal/model"
)

// Intent is a retrieval intent.
type Intent string

const (
	Recall        Intent = "recall"
	NewTopic      Intent = "new_topic"
	Clarification Intent = "clarification"
	MultiHop      Intent = "multi_hop"
)

// All lists every intent in a stable order.
var All = []Intent{Recall, NewTopic, Clarification, MultiHop}

// Strategy names.
const (
	ModeHeuristic = "heuristic"
	ModeModel     = "model"
	ModeForced    = "forced"
)

// Result is a classification. Degraded is set when the model strategy had
// to fall back to the heuristic.
type Result struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Terms      []string `json:"terms,omitempty"`
	Strategy   string   `json:"strategy"`
	Degraded   bool     `json:"degraded,omitempty"`
}

// Analyzer classifies a message given the most recent turns (oldest first).
type Analyzer interface {
	Classify(ctx context.Context, message string, recent []model.Turn) (Result, error)
}

// Parse converts a name such as "recall" or "multi-hop" to an Intent.
func Parse(s string) (Intent, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")
	for _, in := range All {
		if string(in) == norm {
			return in, nil
		}
	}
	switch norm {
	case "multihop":
		return MultiHop, nil
	case "newtopic", "new":
		return NewTopic, nil
	case "clarify":
		return Clarification, nil
	}
	return "", fmt.Errorf("unknown intent %q (valid: recall, new_topic, clarification, multi_hop)", s)
}

// New returns the analyzer for mode. Model mode without a reasoner degrades
// to the heuristic with a warning.
func New(mode string, reasoner llm.Completer, logger *slog.Logger) (Analyzer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(mode) {
	case "", ModeHeuristic:
		return NewHeuristic(), nil
	case ModeModel:
		if reasoner == nil {
			logger.Warn("intent model mode requested but no reasoning service configured, using heuristic")
			return NewHeuristic(), nil
		}
		return NewModel(reasoner, logger), nil
	default:
		return nil, fmt.Errorf("unknown intent mode %q", mode)
	}
}

// Forced returns a result for a caller-supplied intent.
func Forced(in Intent, message string) Result {
	return Result{Intent: in, Confidence: 1, Terms: keyTerms(message), Strategy: ModeForced}
}
