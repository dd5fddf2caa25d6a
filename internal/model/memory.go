// Package model defines the core conversation memory data types.
package model

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ValidRoles are the allowed turn roles.
var ValidRoles = map[Role]bool{
	RoleUser:      true,
	RoleAssistant: true,
}

// DayLayout formats the day partition key of a turn.
const DayLayout = "2006-01-02"

// DayID returns the day partition key for t (UTC).
func DayID(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// Turn is one persisted dialogue message.
type Turn struct {
	ID           string    `json:"id"`
	DayID        string    `json:"day_id"`
	Seq          int       `json:"seq"`
	Role         Role      `json:"role"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	Facts        []Fact    `json:"facts,omitempty"`
	EmbeddingRef string    `json:"embedding_ref,omitempty"`
}

// Chunk is a bounded slice of a turn's text, embedded independently.
type Chunk struct {
	ID        string    `json:"id"`
	TurnID    string    `json:"turn_id"`
	Seq       int       `json:"seq"`
	Offset    int       `json:"offset"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// NodeKind distinguishes the two retrievable units.
type NodeKind string

const (
	NodeTurn  NodeKind = "turn"
	NodeChunk NodeKind = "chunk"
)

// MemoryNode is the crawler's unit of retrieval: a turn or a chunk with
// exactly one embedding and one timestamp.
type MemoryNode struct {
	ID        string    `json:"id"`
	Kind      NodeKind  `json:"kind"`
	TurnID    string    `json:"turn_id"`
	Role      Role      `json:"role,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Embedding []float32 `json:"-"`

	// Chunk position within the source turn; zero for turn nodes.
	Seq    int `json:"seq,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ScoredNode is a MemoryNode ranked against a query.
type ScoredNode struct {
	Node       MemoryNode `json:"node"`
	Similarity float64    `json:"similarity"`
	Recency    float64    `json:"recency"`
	Score      float64    `json:"score"`
	Hop        int        `json:"hop"`
}

// Fact is an atomic, attributable statement extracted from a turn.
type Fact struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	SourceTurnID string    `json:"source_turn_id"`
	ExtractedAt  time.Time `json:"extracted_at"`
}
