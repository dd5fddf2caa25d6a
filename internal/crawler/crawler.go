// Package crawler ranks memory nodes against a query by blending semantic
// similarity with recency, optionally over several hops.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/rcliao/lattice-memory/internal/embedding"
	"github.com/rcliao/lattice-memory/internal/metrics"
	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/store"
	"github.com/rcliao/lattice-memory/internal/terms"
)

const (
	DefaultRecencyWeight = 0.3
	// DefaultDecayPerDay gives a half-life of ln(2)/0.1 ≈ 6.93 days.
	DefaultDecayPerDay = 0.1
	DefaultTermsPerHop = 5
	DefaultSeedResults = 3
	// overFetch widens each index query so recency can re-rank candidates
	// that similarity alone would have cut.
	overFetch = 3
)

// ErrInvalidConfig is returned by New for out-of-range parameters.
var ErrInvalidConfig = errors.New("crawler: invalid config")

// Config tunes scoring and multi-hop behavior.
type Config struct {
	RecencyWeight float64
	DecayPerDay   float64
	TermsPerHop   int
	SeedResults   int
}

// DefaultConfig returns the default scoring parameters.
func DefaultConfig() Config {
	return Config{
		RecencyWeight: DefaultRecencyWeight,
		DecayPerDay:   DefaultDecayPerDay,
		TermsPerHop:   DefaultTermsPerHop,
		SeedResults:   DefaultSeedResults,
	}
}

// Crawler searches a NodeIndex. The embedder may be nil, in which case every
// search is recency-only.
type Crawler struct {
	index    store.NodeIndex
	embedder embedding.Embedder
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithClock overrides the time source used for ages.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) { c.now = now }
}

// WithMetrics records fallbacks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// New validates cfg and creates a crawler.
func New(index store.NodeIndex, embedder embedding.Embedder, cfg Config, opts ...Option) (*Crawler, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: nil index", ErrInvalidConfig)
	}
	if cfg.RecencyWeight < 0 || cfg.RecencyWeight > 1 || math.IsNaN(cfg.RecencyWeight) {
		return nil, fmt.Errorf("%w: recency weight %v not in [0,1]", ErrInvalidConfig, cfg.RecencyWeight)
	}
	if cfg.DecayPerDay < 0 {
		return nil, fmt.Errorf("%w: negative decay rate", ErrInvalidConfig)
	}
	if cfg.TermsPerHop <= 0 {
		cfg.TermsPerHop = DefaultTermsPerHop
	}
	if cfg.SeedResults <= 0 {
		cfg.SeedResults = DefaultSeedResults
	}

	c := &Crawler{
		index:    index,
		embedder: embedder,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// RecencyDecay is exp(-λ·ageDays) clamped to [0,1]. Negative ages count as
// zero.
func RecencyDecay(age time.Duration, perDay float64) float64 {
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	return clamp01(math.Exp(-perDay * days))
}

// Score blends similarity and recency: (1-w)·sim + w·decay.
func Score(similarity, decay, w float64) float64 {
	return (1-w)*clamp01(similarity) + w*clamp01(decay)
}

// Search runs plan against the index. A zero-hop plan returns an empty
// result without touching the index. When the query cannot be embedded the
// result is the newest nodes ranked by recency alone.
func (c *Crawler) Search(ctx context.Context, query string, plan model.RetrievalPlan) ([]model.ScoredNode, error) {
	if plan.ZeroHop() {
		return []model.ScoredNode{}, nil
	}

	vec, err := c.embed(ctx, query)
	if err != nil {
		c.logger.Warn("query embedding failed, ranking by recency only", "err", err)
		c.metrics.Fallback("crawler")
		return c.recencyOnly(ctx, plan)
	}

	now := c.now()
	best := map[string]model.ScoredNode{}
	if err := c.pass(ctx, vec, plan, 1, now, best); err != nil {
		return nil, err
	}

	exclude := map[string]bool{}
	for _, w := range terms.Words(query) {
		exclude[w] = true
	}
	q := query
	for hop := 2; hop <= plan.HopCount; hop++ {
		var texts []string
		for _, s := range c.rank(best, 0) {
			if len(texts) == c.cfg.SeedResults {
				break
			}
			// Only nodes that would survive the plan seed the next hop.
			if s.Similarity > 0 && s.Score >= plan.ScoreThreshold {
				texts = append(texts, s.Node.Text)
			}
		}
		extra := terms.Salient(texts, exclude, c.cfg.TermsPerHop)
		if len(extra) == 0 {
			break
		}
		for _, t := range extra {
			exclude[strings.ToLower(t)] = true
		}
		q = q + " " + strings.Join(extra, " ")

		hopVec, err := c.embed(ctx, q)
		if err != nil {
			c.logger.Warn("hop embedding failed, stopping early", "hop", hop, "err", err)
			c.metrics.Fallback("crawler")
			break
		}
		if err := c.pass(ctx, hopVec, plan, hop, now, best); err != nil {
			return nil, err
		}
		c.logger.Debug("crawler hop", "hop", hop, "terms", extra, "candidates", len(best))
	}

	ranked := c.rank(best, 0)
	out := make([]model.ScoredNode, 0, plan.MaxCandidates)
	for _, n := range ranked {
		if n.Score < plan.ScoreThreshold {
			continue
		}
		out = append(out, n)
		if len(out) == plan.MaxCandidates {
			break
		}
	}
	return out, nil
}

func (c *Crawler) embed(ctx context.Context, text string) (embedding.Vector, error) {
	if c.embedder == nil {
		return nil, errors.New("no embedder configured")
	}
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, embedding.ErrEmptyEmbedding
	}
	return vec, nil
}

// pass queries the index once and merges results into best, keeping each
// node's highest score.
func (c *Crawler) pass(ctx context.Context, vec embedding.Vector, plan model.RetrievalPlan, hop int, now time.Time, best map[string]model.ScoredNode) error {
	raw, err := c.index.SearchNodes(ctx, vec, plan.MaxCandidates*overFetch)
	if err != nil {
		return fmt.Errorf("search index: %w", err)
	}
	for _, r := range raw {
		sim := clamp01(r.Similarity)
		decay := RecencyDecay(now.Sub(r.Node.CreatedAt), c.cfg.DecayPerDay)
		sn := model.ScoredNode{
			Node:       r.Node,
			Similarity: sim,
			Recency:    decay,
			Score:      Score(sim, decay, c.cfg.RecencyWeight),
			Hop:        hop,
		}
		if prev, ok := best[sn.Node.ID]; !ok || sn.Score > prev.Score {
			best[sn.Node.ID] = sn
		}
	}
	return nil
}

func (c *Crawler) recencyOnly(ctx context.Context, plan model.RetrievalPlan) ([]model.ScoredNode, error) {
	nodes, err := c.index.RecentNodes(ctx, plan.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("recent nodes: %w", err)
	}
	now := c.now()
	out := make([]model.ScoredNode, 0, len(nodes))
	for _, n := range nodes {
		decay := RecencyDecay(now.Sub(n.CreatedAt), c.cfg.DecayPerDay)
		out = append(out, model.ScoredNode{Node: n, Recency: decay, Score: decay, Hop: 1})
	}
	store.SortScored(out)
	return out, nil
}

// rank sorts the merged candidates; limit <= 0 keeps all.
func (c *Crawler) rank(best map[string]model.ScoredNode, limit int) []model.ScoredNode {
	out := make([]model.ScoredNode, 0, len(best))
	for _, n := range best {
		out = append(out, n)
	}
	store.SortScored(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
