package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rcliao/lattice-memory/internal/chunker"
	"github.com/rcliao/lattice-memory/internal/embedding"
	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/store"
)

// Indexer embeds turns into a NodeIndex. A nil Embedder makes IndexTurn a no-op.
type Indexer struct {
	Embedder    embedding.Embedder
	Index       store.NodeIndex
	Chunking    chunker.Options
	Concurrency int
}

func (e *Engine) index(ctx context.Context, t model.Turn) error {
	ix := Indexer{
		Embedder:    e.deps.Embedder,
		Index:       e.deps.Index,
		Chunking:    e.cfg.Chunking,
		Concurrency: e.cfg.EmbedConcurrency,
	}
	return ix.IndexTurn(ctx, t)
}

// IndexTurn adds one node for a short turn, or one node per chunk for a long
// one. Chunks are embedded concurrently and inserted in order so the turn's
// embedding_ref is its first chunk.
func (ix Indexer) IndexTurn(ctx context.Context, t model.Turn) error {
	if ix.Embedder == nil {
		return nil
	}
	opts := ix.Chunking
	if opts == (chunker.Options{}) {
		opts = chunker.DefaultOptions()
	}
	limit := ix.Concurrency
	if limit <= 0 {
		limit = DefaultEmbedConcurrency
	}
	pieces, err := chunker.Split(t.Text, opts)
	if err != nil {
		return fmt.Errorf("chunk turn: %w", err)
	}
	if len(pieces) == 0 {
		return nil
	}

	vecs := make([]embedding.Vector, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range pieces {
		i, p := i, p
		g.Go(func() error {
			v, err := ix.Embedder.Embed(gctx, p.Text)
			if errors.Is(err, embedding.ErrEmptyEmbedding) {
				// Nothing to index, e.g. punctuation only.
				return nil
			}
			if err != nil {
				return fmt.Errorf("embed piece %d: %w", p.Seq, err)
			}
			vecs[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(pieces) == 1 {
		if len(vecs[0]) == 0 {
			return nil
		}
		return ix.Index.AddNode(ctx, model.MemoryNode{
			ID:        t.ID,
			Kind:      model.NodeTurn,
			TurnID:    t.ID,
			Role:      t.Role,
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
			Embedding: vecs[0],
		})
	}
	for i, p := range pieces {
		if len(vecs[i]) == 0 {
			continue
		}
		err := ix.Index.AddNode(ctx, model.MemoryNode{
			ID:        fmt.Sprintf("%s-c%d", t.ID, p.Seq),
			Kind:      model.NodeChunk,
			TurnID:    t.ID,
			Role:      t.Role,
			Text:      p.Text,
			CreatedAt: t.CreatedAt,
			Embedding: vecs[i],
			Seq:       p.Seq,
			Offset:    p.Offset,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
