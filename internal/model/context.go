package model

import "strings"

// RetrievalPlan is the governor's per-message decision about how much
// retrieval effort to spend.
type RetrievalPlan struct {
	HopCount       int     `json:"hop_count"`
	MaxCandidates  int     `json:"max_candidates"`
	ScoreThreshold float64 `json:"score_threshold"`
	Guidance       string  `json:"guidance,omitempty"`
}

// ZeroHop reports whether the plan skips the index entirely.
func (p RetrievalPlan) ZeroHop() bool {
	return p.HopCount <= 0 || p.MaxCandidates <= 0
}

// BlockKind labels where a hydrated block came from.
type BlockKind string

const (
	BlockProfile BlockKind = "profile"
	BlockMemory  BlockKind = "memory"
	BlockWindow  BlockKind = "window"
)

// Block is one whole unit of hydrated context.
type Block struct {
	Kind     BlockKind `json:"kind"`
	Role     Role      `json:"role,omitempty"`
	Text     string    `json:"text"`
	Tokens   int       `json:"tokens"`
	SourceID string    `json:"source_id,omitempty"`
}

// HydratedContext is the prompt-ready context for one message.
// TotalTokens never exceeds Budget.
type HydratedContext struct {
	Blocks      []Block `json:"blocks"`
	TotalTokens int     `json:"total_tokens"`
	Budget      int     `json:"budget"`
	Dropped     int     `json:"dropped"`
}

// Render joins the blocks into a single prompt section.
func (h HydratedContext) Render() string {
	parts := make([]string, 0, len(h.Blocks))
	for _, b := range h.Blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Count returns how many blocks of the given kind were included.
func (h HydratedContext) Count(kind BlockKind) int {
	n := 0
	for _, b := range h.Blocks {
		if b.Kind == kind {
			n++
		}
	}
	return n
}
