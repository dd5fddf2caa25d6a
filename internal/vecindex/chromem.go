// Package vecindex provides an embedding index backed by chromem-go, an
// embedded vector database persisted to a directory.
package vecindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/store"
)

const collectionName = "memory_nodes"

// ErrZeroVector is returned by AddNode for an embedding with no direction.
var ErrZeroVector = errors.New("vecindex: zero-norm embedding")

// RecentLister answers recency listings; the chromem collection has no
// ordering of its own.
type RecentLister interface {
	RecentNodes(ctx context.Context, limit int) ([]model.MemoryNode, error)
}

// Chromem implements store.NodeIndex on a chromem-go collection.
type Chromem struct {
	db     *chromem.DB
	col    *chromem.Collection
	recent RecentLister
	mu     sync.RWMutex
}

var _ store.NodeIndex = (*Chromem)(nil)

// NewChromem opens (or creates) a persistent index under dir. An empty dir
// keeps the index in memory.
func NewChromem(dir string, recent RecentLister) (*Chromem, error) {
	var db *chromem.DB
	if dir == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Chromem{db: db, col: col, recent: recent}, nil
}

// AddNode stores a node as a chromem document.
func (c *Chromem) AddNode(ctx context.Context, n model.MemoryNode) error {
	if n.ID == "" || len(n.Embedding) == 0 {
		return fmt.Errorf("add node: missing id or embedding")
	}
	// chromem normalizes on insert; a zero vector would become NaN.
	if zeroNorm(n.Embedding) {
		return fmt.Errorf("add node %s: %w", n.ID, ErrZeroVector)
	}

	doc := chromem.Document{
		ID:        n.ID,
		Content:   n.Text,
		Embedding: n.Embedding,
		Metadata: map[string]string{
			"kind":       string(n.Kind),
			"turn_id":    n.TurnID,
			"role":       string(n.Role),
			"created_at": n.CreatedAt.UTC().Format(time.RFC3339Nano),
			"seq":        strconv.Itoa(n.Seq),
			"offset":     strconv.Itoa(n.Offset),
		},
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// SearchNodes queries the collection by cosine similarity. Results share
// the SQLite index's ordering rules.
func (c *Chromem) SearchNodes(ctx context.Context, query []float32, topK int) ([]model.ScoredNode, error) {
	if topK <= 0 {
		topK = 10
	}
	if len(query) == 0 || zeroNorm(query) {
		return []model.ScoredNode{}, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	// chromem-go requires nResults <= collection size
	n := c.col.Count()
	if n == 0 {
		return []model.ScoredNode{}, nil
	}
	if topK > n {
		topK = n
	}

	results, err := c.col.QueryEmbedding(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	scored := make([]model.ScoredNode, 0, len(results))
	for _, r := range results {
		node := fromResult(r)
		sim := float64(r.Similarity)
		scored = append(scored, model.ScoredNode{Node: node, Similarity: sim, Score: sim})
	}
	store.SortScored(scored)
	return scored, nil
}

// RecentNodes delegates to the configured lister.
func (c *Chromem) RecentNodes(ctx context.Context, limit int) ([]model.MemoryNode, error) {
	if c.recent == nil {
		return nil, nil
	}
	return c.recent.RecentNodes(ctx, limit)
}

// Count returns the number of indexed nodes.
func (c *Chromem) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.col.Count()
}

func fromResult(r chromem.Result) model.MemoryNode {
	n := model.MemoryNode{
		ID:        r.ID,
		Kind:      model.NodeKind(r.Metadata["kind"]),
		TurnID:    r.Metadata["turn_id"],
		Role:      model.Role(r.Metadata["role"]),
		Text:      r.Content,
		Embedding: r.Embedding,
	}
	n.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.Metadata["created_at"])
	n.Seq, _ = strconv.Atoi(r.Metadata["seq"])
	n.Offset, _ = strconv.Atoi(r.Metadata["offset"])
	return n
}

func zeroNorm(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
