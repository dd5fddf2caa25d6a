package vecindex

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/store"
)

type stubRecent struct {
	nodes []model.MemoryNode
}

func (s stubRecent) RecentNodes(_ context.Context, limit int) ([]model.MemoryNode, error) {
	if limit < len(s.nodes) {
		return s.nodes[:limit], nil
	}
	return s.nodes, nil
}

func node(id string, at time.Time, vec ...float32) model.MemoryNode {
	return model.MemoryNode{
		ID: id, Kind: model.NodeTurn, TurnID: id, Role: model.RoleUser,
		Text: "text " + id, CreatedAt: at, Embedding: vec,
	}
}

func TestChromem_EmptyIndex(t *testing.T) {
	idx, err := NewChromem("", nil)
	require.NoError(t, err)

	results, err := idx.SearchNodes(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestChromem_SearchCapsToCollectionSize(t *testing.T) {
	ctx := context.Background()
	idx, err := NewChromem("", nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, idx.AddNode(ctx, node("a", now, 1, 0, 0)))
	require.NoError(t, idx.AddNode(ctx, node("b", now, 0, 1, 0)))

	results, err := idx.SearchNodes(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Node.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-5)
	assert.Equal(t, model.NodeTurn, results[0].Node.Kind)
	assert.WithinDuration(t, now, results[0].Node.CreatedAt, time.Millisecond)
}

func TestChromem_RejectsZeroVector(t *testing.T) {
	ctx := context.Background()
	idx, err := NewChromem("", nil)
	require.NoError(t, err)

	err = idx.AddNode(ctx, node("z", time.Now(), 0, 0, 0))
	require.ErrorIs(t, err, ErrZeroVector)
	assert.Zero(t, idx.Count())

	require.NoError(t, idx.AddNode(ctx, node("a", time.Now(), 1, 0, 0)))
	results, err := idx.SearchNodes(ctx, []float32{0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.SearchNodes(ctx, []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, math.IsNaN(results[0].Similarity))
}

func TestChromem_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := NewChromem(dir, nil)
	require.NoError(t, err)
	require.NoError(t, idx.AddNode(ctx, node("persisted", time.Now(), 0, 1)))

	reopened, err := NewChromem(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())
}

func TestChromem_RecentDelegates(t *testing.T) {
	now := time.Now()
	idx, err := NewChromem("", stubRecent{nodes: []model.MemoryNode{node("x", now, 1), node("y", now, 1)}})
	require.NoError(t, err)

	nodes, err := idx.RecentNodes(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "x", nodes[0].ID)
}

func TestMirrored_WritesBothSearchesChromem(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer s.Close()

	search, err := NewChromem("", s)
	require.NoError(t, err)
	m := &Mirrored{Durable: s, Search: search}

	turn, err := s.AppendTurn(ctx, store.TurnParams{Role: model.RoleUser, Text: "mirrored turn"})
	require.NoError(t, err)
	require.NoError(t, m.AddNode(ctx, model.MemoryNode{
		ID: turn.ID, Kind: model.NodeTurn, TurnID: turn.ID, Role: model.RoleUser,
		Text: turn.Text, CreatedAt: turn.CreatedAt, Embedding: []float32{0.6, 0.8},
	}))

	assert.Equal(t, 1, search.Count())
	results, err := m.SearchNodes(ctx, []float32{0.6, 0.8}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, turn.ID, results[0].Node.ID)

	recent, err := m.RecentNodes(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	got, err := s.GetTurn(ctx, turn.ID)
	require.NoError(t, err)
	assert.Equal(t, turn.ID, got.EmbeddingRef)
}
