package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rcliao/lattice-memory/internal/embedding"
	"github.com/rcliao/lattice-memory/internal/model"
)

const defaultTopK = 10

// AddNode inserts an embedded node. Chunk nodes also record their chunk row.
// The source turn's embedding_ref points at its turn node, or at the first
// chunk node when the turn was only indexed as chunks.
func (s *SQLiteStore) AddNode(ctx context.Context, n model.MemoryNode) error {
	if n.ID == "" || n.TurnID == "" {
		return fmt.Errorf("add node: missing id or turn id")
	}
	if len(n.Embedding) == 0 {
		return fmt.Errorf("add node %s: empty embedding", n.ID)
	}
	if n.Kind != model.NodeTurn && n.Kind != model.NodeChunk {
		return fmt.Errorf("add node %s: unknown kind %q", n.ID, n.Kind)
	}

	vec, err := json.Marshal(n.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO nodes (id, kind, turn_id, role, text, created_at, dims, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Kind), n.TurnID, string(n.Role), n.Text,
		n.CreatedAt.UTC().Format(timeLayout), len(n.Embedding), string(vec))
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}

	switch n.Kind {
	case model.NodeChunk:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, turn_id, seq, byte_offset, text) VALUES (?, ?, ?, ?, ?)`,
			n.ID, n.TurnID, n.Seq, n.Offset, n.Text)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE turns SET embedding_ref = ? WHERE id = ? AND embedding_ref IS NULL`, n.ID, n.TurnID)
	default:
		_, err = tx.ExecContext(ctx, `UPDATE turns SET embedding_ref = ? WHERE id = ?`, n.ID, n.TurnID)
	}
	if err != nil {
		return fmt.Errorf("set embedding ref: %w", err)
	}

	return tx.Commit()
}

// SearchNodes scores every node with a matching dimension by cosine
// similarity. Ties go to the newer node, then the greater ID.
func (s *SQLiteStore) SearchNodes(ctx context.Context, query []float32, topK int) ([]model.ScoredNode, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	if len(query) == 0 {
		return []model.ScoredNode{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, turn_id, role, text, created_at, embedding FROM nodes WHERE dims = ?`, len(query))
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	results := []model.ScoredNode{}
	for rows.Next() {
		n, err := scanNode(rows, true)
		if err != nil {
			return nil, err
		}
		sim := embedding.CosineSimilarity(query, n.Embedding)
		results = append(results, model.ScoredNode{Node: n, Similarity: sim, Score: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	SortScored(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// RecentNodes returns the newest nodes without their embeddings.
func (s *SQLiteStore) RecentNodes(ctx context.Context, limit int) ([]model.MemoryNode, error) {
	if limit <= 0 {
		limit = defaultTopK
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, turn_id, role, text, created_at, '' FROM nodes
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent nodes: %w", err)
	}
	defer rows.Close()

	var nodes []model.MemoryNode
	for rows.Next() {
		n, err := scanNode(rows, false)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// SortScored orders nodes by score, then newer CreatedAt, then greater ID.
func SortScored(nodes []model.ScoredNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Node.CreatedAt.Equal(b.Node.CreatedAt) {
			return a.Node.CreatedAt.After(b.Node.CreatedAt)
		}
		return a.Node.ID > b.Node.ID
	})
}

func scanNode(row scanner, withEmbedding bool) (model.MemoryNode, error) {
	var n model.MemoryNode
	var kind, role, createdAt, vec string

	if err := row.Scan(&n.ID, &kind, &n.TurnID, &role, &n.Text, &createdAt, &vec); err != nil {
		return n, err
	}
	n.Kind = model.NodeKind(kind)
	n.Role = model.Role(role)
	n.CreatedAt = parseTime(createdAt)
	if withEmbedding && vec != "" {
		if err := json.Unmarshal([]byte(vec), &n.Embedding); err != nil {
			return n, fmt.Errorf("decode embedding for %s: %w", n.ID, err)
		}
	}
	return n, nil
}
