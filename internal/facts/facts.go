// Package facts extracts durable facts about the user from conversation
// turns.
package facts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/lattice-memory/internal/llm"
	"github.com/rcliao/lattice-memory/internal/model"
)

// None is the reply meaning the turn holds nothing worth keeping.
const None = "NONE"

const (
	maxFacts      = 8
	maxFactTokens = 300
)

const extractPrompt = `You maintain long-term memory about a user.
From the message below, list durable facts about the user: preferences,
relationships, plans, biography, recurring topics. One fact per line, each a
short standalone sentence starting with "User". Skip small talk and anything
only true for this conversation. If there is nothing worth keeping, reply
with exactly NONE.`

// Extractor turns a turn into zero or more facts. Returned facts carry the
// turn as their source; IDs are left for the fact log to assign.
type Extractor interface {
	Extract(ctx context.Context, turn model.Turn) ([]model.Fact, error)
}

// Nop extracts nothing. It stands in when no reasoning service is
// configured.
type Nop struct{}

func (Nop) Extract(context.Context, model.Turn) ([]model.Fact, error) { return nil, nil }

// LLMExtractor asks the reasoning service for facts.
type LLMExtractor struct {
	reasoner llm.Completer
	now      func() time.Time
}

// New returns an LLMExtractor, or Nop when reasoner is nil.
func New(reasoner llm.Completer) Extractor {
	if reasoner == nil {
		return Nop{}
	}
	return &LLMExtractor{reasoner: reasoner, now: time.Now}
}

// Online reports whether e can actually extract facts.
func Online(e Extractor) bool {
	switch e.(type) {
	case nil, Nop, *Nop:
		return false
	}
	return true
}

func (e *LLMExtractor) Extract(ctx context.Context, turn model.Turn) ([]model.Fact, error) {
	if turn.Role != model.RoleUser || strings.TrimSpace(turn.Text) == "" {
		return nil, nil
	}
	reply, err := llm.Ask(ctx, e.reasoner, extractPrompt, "Message:\n"+turn.Text, maxFactTokens)
	if err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}
	lines := Parse(reply)
	now := e.now().UTC()
	out := make([]model.Fact, 0, len(lines))
	for _, l := range lines {
		out = append(out, model.Fact{Text: l, SourceTurnID: turn.ID, ExtractedAt: now})
	}
	return out, nil
}

// Parse reads one fact per line, dropping bullets, numbering, blanks and
// duplicates. A reply of NONE yields nothing.
func Parse(reply string) []string {
	if strings.EqualFold(strings.TrimSpace(reply), None) {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, line := range strings.Split(reply, "\n") {
		line = trimBullet(line)
		if line == "" || strings.EqualFold(line, None) {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
		if len(out) == maxFacts {
			break
		}
	}
	return out
}

func trimBullet(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*•")
	// "1." or "2)"
	if i := strings.IndexAny(line, ".)"); i > 0 && i <= 3 && isDigits(line[:i]) {
		line = line[i+1:]
	}
	return strings.TrimSpace(line)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
