package vecindex

import (
	"context"

	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/store"
)

// Mirrored writes every node to a durable index (which keeps chunk rows,
// embedding refs and recency order) and answers similarity queries from a
// chromem collection.
type Mirrored struct {
	Durable store.NodeIndex
	Search  *Chromem
}

var _ store.NodeIndex = (*Mirrored)(nil)

func (m *Mirrored) AddNode(ctx context.Context, n model.MemoryNode) error {
	if err := m.Durable.AddNode(ctx, n); err != nil {
		return err
	}
	return m.Search.AddNode(ctx, n)
}

func (m *Mirrored) SearchNodes(ctx context.Context, query []float32, topK int) ([]model.ScoredNode, error) {
	return m.Search.SearchNodes(ctx, query, topK)
}

func (m *Mirrored) RecentNodes(ctx context.Context, limit int) ([]model.MemoryNode, error) {
	return m.Durable.RecentNodes(ctx, limit)
}
