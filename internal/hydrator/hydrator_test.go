package hydrator

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/lattice-memory/internal/llm"
	"github.com/rcliao/lattice-memory/internal/model"
)

// wordCounter charges one token per whitespace-separated word.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

var base = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func turns(n int) []model.Turn {
	out := make([]model.Turn, n)
	for i := range out {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		out[i] = model.Turn{
			ID:        fmt.Sprintf("t%d", i),
			Role:      role,
			Text:      strings.Repeat("word ", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func scored(id, turnID string, score float64, words int) model.ScoredNode {
	return model.ScoredNode{
		Node: model.MemoryNode{
			ID: id, Kind: model.NodeTurn, TurnID: turnID, Role: model.RoleUser,
			Text: strings.TrimSpace(strings.Repeat("old ", words)), CreatedAt: base.Add(-48 * time.Hour),
		},
		Similarity: score,
		Score:      score,
	}
}

func sumTokens(hc model.HydratedContext) int {
	n := 0
	for _, b := range hc.Blocks {
		n += b.Tokens
	}
	return n
}

func TestHydrate_NeverExceedsBudget(t *testing.T) {
	h := New(wordCounter{})
	budgets := []int{-1, 0, 1, 2, 3, 5, 8, 13, 21, 40, 80, 200, 1000}
	windows := []int{0, 1, 3, 8}
	nodeCounts := []int{0, 1, 4, 10}
	profiles := []string{"", "likes tea", strings.Repeat("long profile ", 30)}

	for _, budget := range budgets {
		for _, w := range windows {
			for _, nc := range nodeCounts {
				for _, p := range profiles {
					var nodes []model.ScoredNode
					for i := 0; i < nc; i++ {
						nodes = append(nodes, scored(fmt.Sprintf("n%d", i), fmt.Sprintf("old%d", i), 1/float64(i+1), i+2))
					}
					hc := h.Hydrate(turns(w), nodes, p, budget)
					name := fmt.Sprintf("budget=%d window=%d nodes=%d profile=%d", budget, w, nc, len(p))
					assert.LessOrEqual(t, hc.TotalTokens, max(budget, 0), name)
					assert.Equal(t, sumTokens(hc), hc.TotalTokens, name)
					assert.Equal(t, budget, hc.Budget, name)
					if budget <= 0 {
						assert.Empty(t, hc.Blocks, name)
					}
				}
			}
		}
	}
}

func TestHydrate_Deterministic(t *testing.T) {
	h := New(wordCounter{})
	nodes := []model.ScoredNode{scored("a", "x", 0.5, 3), scored("b", "y", 0.5, 3), scored("c", "z", 0.9, 3)}
	first := h.Hydrate(turns(5), nodes, "profile text", 40)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, h.Hydrate(turns(5), nodes, "profile text", 40))
	}
}

func TestHydrate_OrderAndPriority(t *testing.T) {
	h := New(wordCounter{})
	window := turns(3)
	nodes := []model.ScoredNode{scored("low", "x", 0.2, 2), scored("high", "y", 0.9, 2)}

	hc := h.Hydrate(window, nodes, "prefers short answers", 1000)
	require.Len(t, hc.Blocks, 6)

	kinds := []model.BlockKind{}
	for _, b := range hc.Blocks {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []model.BlockKind{
		model.BlockProfile, model.BlockMemory, model.BlockMemory,
		model.BlockWindow, model.BlockWindow, model.BlockWindow,
	}, kinds)
	assert.Equal(t, "high", hc.Blocks[1].SourceID)
	assert.Equal(t, "low", hc.Blocks[2].SourceID)
	assert.Equal(t, []string{"t0", "t1", "t2"}, []string{hc.Blocks[3].SourceID, hc.Blocks[4].SourceID, hc.Blocks[5].SourceID})
	assert.Zero(t, hc.Dropped)
}

func TestHydrate_TightBudgetKeepsNewestWindowTurns(t *testing.T) {
	h := New(wordCounter{})
	window := turns(4) // t3 is "User/Assistant: " + 4 words
	// t3 costs 1 label + 4 words + overhead = 7; t2 costs 6.
	hc := h.Hydrate(window, []model.ScoredNode{scored("n", "x", 0.9, 1)}, "profile", 13)

	require.Equal(t, 2, hc.Count(model.BlockWindow))
	assert.Equal(t, "t2", hc.Blocks[0].SourceID)
	assert.Equal(t, "t3", hc.Blocks[1].SourceID)
	assert.Zero(t, hc.Count(model.BlockMemory))
	assert.Zero(t, hc.Count(model.BlockProfile))
	assert.Equal(t, 13, hc.TotalTokens)
	assert.Equal(t, 4, hc.Dropped)
}

func TestHydrate_BudgetBelowOneTurn(t *testing.T) {
	h := New(wordCounter{})
	hc := h.Hydrate(turns(2), nil, "", 3)
	assert.Zero(t, hc.Count(model.BlockWindow))
	assert.Zero(t, hc.TotalTokens)
}

func TestHydrate_SkipsNodesAlreadyInWindow(t *testing.T) {
	h := New(wordCounter{})
	window := turns(2)
	nodes := []model.ScoredNode{scored("dup", "t1", 0.99, 2), scored("other", "x", 0.5, 2)}
	hc := h.Hydrate(window, nodes, "", 1000)
	require.Equal(t, 1, hc.Count(model.BlockMemory))
	assert.Equal(t, "other", hc.Blocks[0].SourceID)
}

func TestHydrate_SmallerMemoryFitsAfterLargerDropped(t *testing.T) {
	h := New(wordCounter{})
	nodes := []model.ScoredNode{scored("big", "x", 0.9, 50), scored("small", "y", 0.5, 2)}
	hc := h.Hydrate(nil, nodes, "", 10)
	require.Len(t, hc.Blocks, 1)
	assert.Equal(t, "small", hc.Blocks[0].SourceID)
	assert.Equal(t, 1, hc.Dropped)
}

func TestTurnAndProfileTokens_MatchHydratedBlocks(t *testing.T) {
	h := New(wordCounter{})
	window := turns(4)
	profile := "prefers short answers"

	want := h.ProfileTokens(profile)
	for _, tr := range window {
		want += h.TurnTokens(tr)
	}
	hc := h.Hydrate(window, nil, profile, 1000)
	assert.Equal(t, want, hc.TotalTokens)

	// "User: word" is two words plus overhead.
	assert.Equal(t, 2+BlockOverhead, h.TurnTokens(window[0]))
	assert.Zero(t, h.ProfileTokens("  "))
}

func TestHydrate_NilCounterUsesEstimate(t *testing.T) {
	hc := New(nil).Hydrate(turns(1), nil, "", 100)
	require.Len(t, hc.Blocks, 1)
	assert.Greater(t, hc.TotalTokens, BlockOverhead)
}

func TestMessages(t *testing.T) {
	h := New(wordCounter{})
	window := []model.Turn{
		{ID: "a", Role: model.RoleUser, Text: "hi", CreatedAt: base},
		{ID: "b", Role: model.RoleUser, Text: "are you there", CreatedAt: base.Add(time.Second)},
		{ID: "c", Role: model.RoleAssistant, Text: "yes", CreatedAt: base.Add(2 * time.Second)},
	}
	hc := h.Hydrate(window, []model.ScoredNode{scored("m", "x", 0.8, 2)}, "likes tea", 1000)

	bg, msgs := Messages(hc)
	assert.Contains(t, bg, "likes tea")
	assert.Contains(t, bg, "[memory")
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hi\n\nare you there"}, msgs[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "yes"}, msgs[1])
	assert.Contains(t, hc.Render(), "User: hi")
}
