// Package governor turns a classified intent and the remaining context
// budget into a retrieval plan.
package governor

import (
	"errors"
	"fmt"

	"github.com/rcliao/lattice-memory/internal/intent"
	"github.com/rcliao/lattice-memory/internal/model"
)

const (
	DefaultMinConfidence         = 0.45
	DefaultAvgNodeTokens         = 200
	DefaultMinMultiHopCandidates = 3
	// shallowCandidates caps single-hop plans that were downgraded.
	shallowCandidates = 5
	shallowThreshold  = 0.3
)

// Guidance strings appended to the system prompt.
const (
	GuidanceRecent     = "Answer from the recent conversation; do not speculate about older history."
	GuidanceNewTopic   = "Treat this as a fresh topic; bring up earlier memories only when clearly relevant."
	GuidanceRecall     = "Ground the answer in the retrieved memories; say so plainly if they do not contain it."
	GuidanceMultiHop   = "Connect the retrieved memories step by step and only state links they support."
	GuidanceNoBudget   = "There is no room for older memories; answer from the recent conversation."
	GuidanceLowConfide = "Retrieved memories may be only loosely related; prefer the recent conversation when they conflict."
)

var ErrInvalidConfig = errors.New("governor: invalid config")

// Policy is the plan an intent gets when confidence and budget allow it.
type Policy struct {
	Hops      int
	MaxNodes  int
	Threshold float64
	Guidance  string
}

// Config holds the governor's tunables.
type Config struct {
	MinConfidence         float64
	AvgNodeTokens         int
	MinMultiHopCandidates int
	Policies              map[intent.Intent]Policy
}

// DefaultPolicies returns the per-intent plans.
func DefaultPolicies() map[intent.Intent]Policy {
	return map[intent.Intent]Policy{
		intent.Clarification: {Hops: 0, MaxNodes: 0, Guidance: GuidanceRecent},
		intent.NewTopic:      {Hops: 1, MaxNodes: 3, Threshold: 0.35, Guidance: GuidanceNewTopic},
		intent.Recall:        {Hops: 2, MaxNodes: 8, Threshold: 0.25, Guidance: GuidanceRecall},
		intent.MultiHop:      {Hops: 3, MaxNodes: 12, Threshold: 0.2, Guidance: GuidanceMultiHop},
	}
}

func DefaultConfig() Config {
	return Config{
		MinConfidence:         DefaultMinConfidence,
		AvgNodeTokens:         DefaultAvgNodeTokens,
		MinMultiHopCandidates: DefaultMinMultiHopCandidates,
		Policies:              DefaultPolicies(),
	}
}

// Governor is stateless after construction; Decide is pure.
type Governor struct {
	cfg Config
}

// New validates cfg. Missing policies are filled from the defaults.
func New(cfg Config) (*Governor, error) {
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, fmt.Errorf("%w: min confidence %v not in [0,1]", ErrInvalidConfig, cfg.MinConfidence)
	}
	if cfg.AvgNodeTokens <= 0 {
		return nil, fmt.Errorf("%w: avg node tokens must be positive", ErrInvalidConfig)
	}
	if cfg.MinMultiHopCandidates <= 0 {
		cfg.MinMultiHopCandidates = DefaultMinMultiHopCandidates
	}
	policies := DefaultPolicies()
	for in, p := range cfg.Policies {
		if p.Hops < 0 || p.MaxNodes < 0 {
			return nil, fmt.Errorf("%w: negative policy for %s", ErrInvalidConfig, in)
		}
		policies[in] = p
	}
	cfg.Policies = policies
	return &Governor{cfg: cfg}, nil
}

// Default returns a governor with DefaultConfig.
func Default() *Governor {
	g, _ := New(DefaultConfig())
	return g
}

// DecideResult plans for a classification, honoring its Degraded flag.
func (g *Governor) DecideResult(r intent.Result, budgetRemaining int) model.RetrievalPlan {
	return g.decide(r.Intent, r.Confidence, r.Degraded, budgetRemaining)
}

// Decide plans for an intent at the given confidence with budgetRemaining
// tokens left for retrieved memories.
func (g *Governor) Decide(in intent.Intent, confidence float64, budgetRemaining int) model.RetrievalPlan {
	return g.decide(in, confidence, false, budgetRemaining)
}

func (g *Governor) decide(in intent.Intent, confidence float64, degraded bool, budget int) model.RetrievalPlan {
	p, ok := g.cfg.Policies[in]
	if !ok {
		p = g.cfg.Policies[intent.NewTopic]
	}
	if p.Hops == 0 || p.MaxNodes == 0 {
		return model.RetrievalPlan{Guidance: p.Guidance}
	}

	affordable := 0
	if budget > 0 {
		affordable = budget / g.cfg.AvgNodeTokens
	}
	if affordable == 0 {
		return model.RetrievalPlan{Guidance: GuidanceNoBudget}
	}

	plan := model.RetrievalPlan{
		HopCount:       p.Hops,
		MaxCandidates:  p.MaxNodes,
		ScoreThreshold: p.Threshold,
		Guidance:       p.Guidance,
	}

	if p.Hops > 1 && (degraded || confidence < g.cfg.MinConfidence) {
		plan.HopCount = 1
		plan.MaxCandidates = min(plan.MaxCandidates, shallowCandidates)
		plan.ScoreThreshold = max(plan.ScoreThreshold, shallowThreshold)
		plan.Guidance = GuidanceLowConfide
	}

	plan.MaxCandidates = min(plan.MaxCandidates, affordable)
	if plan.HopCount > 1 && plan.MaxCandidates < g.cfg.MinMultiHopCandidates {
		plan.HopCount = 1
	}
	return plan
}
