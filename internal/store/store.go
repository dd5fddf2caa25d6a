// Package store provides the turn store and embedding index interfaces and
// their SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/lattice-memory/internal/model"
)

var (
	// ErrEmptyTurn is returned when a turn has no text.
	ErrEmptyTurn = errors.New("store: empty turn text")
	// ErrInvalidRole is returned for a role other than user or assistant.
	ErrInvalidRole = errors.New("store: invalid role")
	// ErrNotFound is returned when a turn lookup misses.
	ErrNotFound = errors.New("store: not found")
)

// TurnParams holds parameters for appending a turn.
type TurnParams struct {
	Role      model.Role
	Text      string
	CreatedAt time.Time // zero means now
}

// SearchParams holds parameters for a substring search over turns.
type SearchParams struct {
	Query string
	Role  model.Role
	Limit int
}

// SearchResult wraps a turn with the chunk that matched, if any.
type SearchResult struct {
	model.Turn
	MatchChunk *model.Chunk `json:"match_chunk,omitempty"`
}

// TurnStore is the durable, append-only log of dialogue turns.
type TurnStore interface {
	// AppendTurn durably writes a turn and assigns its day sequence number.
	AppendTurn(ctx context.Context, p TurnParams) (*model.Turn, error)

	// RecentTurns returns up to limit turns, oldest first. An empty dayID
	// spans all days.
	RecentTurns(ctx context.Context, dayID string, limit int) ([]model.Turn, error)

	// GetTurn loads one turn with its extracted facts.
	GetTurn(ctx context.Context, id string) (*model.Turn, error)

	// CountTurns returns the number of persisted turns.
	CountTurns(ctx context.Context) (int, error)

	Close() error
}

// NodeIndex stores embedded memory nodes and answers similarity queries.
type NodeIndex interface {
	// AddNode inserts one node. Existing nodes are untouched.
	AddNode(ctx context.Context, n model.MemoryNode) error

	// SearchNodes returns up to topK nodes ranked by cosine similarity.
	// Score equals Similarity; the caller applies its own weighting.
	SearchNodes(ctx context.Context, query []float32, topK int) ([]model.ScoredNode, error)

	// RecentNodes returns up to limit nodes, newest first.
	RecentNodes(ctx context.Context, limit int) ([]model.MemoryNode, error)
}

// FactLog records facts extracted from turns.
type FactLog interface {
	AppendFacts(ctx context.Context, facts []model.Fact) error
	ListFacts(ctx context.Context, limit int) ([]model.Fact, error)
}
