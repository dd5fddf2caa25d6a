// Package hydrator assembles the prompt context for one message from the
// sliding window, retrieved memories and the user profile without ever
// exceeding a token budget.
package hydrator

import (
	"fmt"
	"strings"

	"github.com/rcliao/lattice-memory/internal/llm"
	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/store"
	"github.com/rcliao/lattice-memory/internal/tokenizer"
)

// BlockOverhead is charged per block for separators and role labels.
const BlockOverhead = 2

const profileHeader = "What you know about the user:\n"

// Hydrator packs blocks under a budget. It holds no state between calls.
type Hydrator struct {
	counter tokenizer.Counter
}

// New creates a hydrator. A nil counter uses the character estimator.
func New(counter tokenizer.Counter) *Hydrator {
	if counter == nil {
		counter = tokenizer.NewCharEstimator(4)
	}
	return &Hydrator{counter: counter}
}

// Hydrate selects whole blocks in priority order: the newest window turns,
// then retrieved nodes by score, then the profile summary. Window turns stop
// at the first one that does not fit; later sources skip blocks that do not
// fit and keep trying smaller ones. The result lists the profile first, then
// memories by score, then window turns oldest first.
func (h *Hydrator) Hydrate(window []model.Turn, nodes []model.ScoredNode, profileSummary string, budget int) model.HydratedContext {
	hc := model.HydratedContext{Blocks: []model.Block{}, Budget: budget}
	if budget <= 0 {
		hc.Dropped = len(window) + len(nodes)
		if strings.TrimSpace(profileSummary) != "" {
			hc.Dropped++
		}
		return hc
	}
	remaining := budget

	var windowBlocks []model.Block
	inWindow := map[string]bool{}
	for i := len(window) - 1; i >= 0; i-- {
		t := window[i]
		b := h.block(model.BlockWindow, t.Role, turnText(t.Role, t.Text), t.ID)
		if b.Tokens > remaining {
			hc.Dropped += i + 1
			break
		}
		remaining -= b.Tokens
		windowBlocks = append(windowBlocks, b)
		inWindow[t.ID] = true
	}

	ranked := append([]model.ScoredNode(nil), nodes...)
	store.SortScored(ranked)
	var memBlocks []model.Block
	seen := map[string]bool{}
	for _, n := range ranked {
		if inWindow[n.Node.TurnID] || seen[n.Node.ID] {
			continue
		}
		seen[n.Node.ID] = true
		b := h.block(model.BlockMemory, n.Node.Role, memoryText(n.Node), n.Node.ID)
		if b.Tokens > remaining {
			hc.Dropped++
			continue
		}
		remaining -= b.Tokens
		memBlocks = append(memBlocks, b)
	}

	if s := strings.TrimSpace(profileSummary); s != "" {
		b := h.block(model.BlockProfile, "", profileHeader+s, "profile")
		if b.Tokens <= remaining {
			remaining -= b.Tokens
			hc.Blocks = append(hc.Blocks, b)
		} else {
			hc.Dropped++
		}
	}
	hc.Blocks = append(hc.Blocks, memBlocks...)
	for i := len(windowBlocks) - 1; i >= 0; i-- {
		hc.Blocks = append(hc.Blocks, windowBlocks[i])
	}
	hc.TotalTokens = budget - remaining
	return hc
}

// TurnTokens is what a window turn costs when hydrated.
func (h *Hydrator) TurnTokens(t model.Turn) int {
	return h.counter.Count(turnText(t.Role, t.Text)) + BlockOverhead
}

// ProfileTokens is what the profile summary costs when hydrated; zero for a
// blank summary.
func (h *Hydrator) ProfileTokens(summary string) int {
	s := strings.TrimSpace(summary)
	if s == "" {
		return 0
	}
	return h.counter.Count(profileHeader+s) + BlockOverhead
}

func (h *Hydrator) block(kind model.BlockKind, role model.Role, text, source string) model.Block {
	return model.Block{
		Kind:     kind,
		Role:     role,
		Text:     text,
		Tokens:   h.counter.Count(text) + BlockOverhead,
		SourceID: source,
	}
}

func roleLabel(r model.Role) string {
	if r == model.RoleAssistant {
		return "Assistant"
	}
	return "User"
}

func turnText(r model.Role, text string) string {
	return roleLabel(r) + ": " + text
}

func memoryText(n model.MemoryNode) string {
	return fmt.Sprintf("[memory %s] %s: %s", n.CreatedAt.UTC().Format(model.DayLayout), roleLabel(n.Role), n.Text)
}

// Messages splits a hydrated context into background text for the system
// prompt (profile and memories) and the window as chat messages, merging
// consecutive messages from the same role.
func Messages(hc model.HydratedContext) (background string, msgs []llm.Message) {
	var bg []string
	for _, b := range hc.Blocks {
		if b.Kind != model.BlockWindow {
			bg = append(bg, b.Text)
			continue
		}
		role := llm.RoleUser
		if b.Role == model.RoleAssistant {
			role = llm.RoleAssistant
		}
		text := strings.TrimPrefix(b.Text, roleLabel(b.Role)+": ")
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content += "\n\n" + text
			continue
		}
		msgs = append(msgs, llm.Message{Role: role, Content: text})
	}
	return strings.Join(bg, "\n\n"), msgs
}
