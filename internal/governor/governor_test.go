package governor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/lattice-memory/internal/intent"
)

const bigBudget = 10000

func TestDecide_PolicyPerIntent(t *testing.T) {
	g := Default()
	tests := []struct {
		in   intent.Intent
		hops int
	}{
		{intent.Clarification, 0},
		{intent.NewTopic, 1},
		{intent.Recall, 2},
		{intent.MultiHop, 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			plan := g.Decide(tt.in, 0.9, bigBudget)
			assert.Equal(t, tt.hops, plan.HopCount)
			assert.NotEmpty(t, plan.Guidance)
			if tt.hops == 0 {
				assert.True(t, plan.ZeroHop())
			}
		})
	}
}

func TestDecide_ClarificationIsShallow(t *testing.T) {
	plan := Default().Decide(intent.Clarification, 0.95, bigBudget)
	assert.True(t, plan.ZeroHop())
	assert.Equal(t, GuidanceRecent, plan.Guidance)
}

func TestDecide_MultiHopIsDeep(t *testing.T) {
	g := Default()
	plan := g.Decide(intent.MultiHop, 0.9, bigBudget)
	assert.Equal(t, 3, plan.HopCount)
	assert.GreaterOrEqual(t, plan.MaxCandidates, DefaultMinMultiHopCandidates)

	recall := g.Decide(intent.Recall, 0.9, bigBudget)
	assert.Greater(t, plan.HopCount, recall.HopCount)
	assert.GreaterOrEqual(t, plan.MaxCandidates, recall.MaxCandidates)
}

func TestDecide_LowConfidenceDowngrades(t *testing.T) {
	plan := Default().Decide(intent.MultiHop, 0.2, bigBudget)
	assert.Equal(t, 1, plan.HopCount)
	assert.LessOrEqual(t, plan.MaxCandidates, shallowCandidates)
	assert.Equal(t, GuidanceLowConfide, plan.Guidance)

	// Single-hop intents keep their plan.
	nt := Default().Decide(intent.NewTopic, 0.2, bigBudget)
	assert.Equal(t, 1, nt.HopCount)
	assert.Equal(t, GuidanceNewTopic, nt.Guidance)
}

func TestDecideResult_DegradedIsShallow(t *testing.T) {
	plan := Default().DecideResult(intent.Result{Intent: intent.Recall, Confidence: 0.9, Degraded: true}, bigBudget)
	assert.Equal(t, 1, plan.HopCount)
	assert.LessOrEqual(t, plan.MaxCandidates, shallowCandidates)
}

func TestDecide_BudgetCapsCandidates(t *testing.T) {
	g := Default()
	for _, budget := range []int{-5, 0, 1, 199, 200, 450, 600, 1000, 5000} {
		for _, in := range intent.All {
			plan := g.Decide(in, 0.9, budget)
			affordable := 0
			if budget > 0 {
				affordable = budget / DefaultAvgNodeTokens
			}
			assert.LessOrEqual(t, plan.MaxCandidates, affordable, "%s at %d", in, budget)
			if affordable == 0 {
				assert.True(t, plan.ZeroHop(), "%s at %d", in, budget)
			}
			if plan.HopCount > 1 {
				assert.GreaterOrEqual(t, plan.MaxCandidates, DefaultMinMultiHopCandidates)
			}
			assert.NotEmpty(t, plan.Guidance)
		}
	}
}

func TestDecide_SmallBudgetForcesSingleHop(t *testing.T) {
	plan := Default().Decide(intent.MultiHop, 0.9, 2*DefaultAvgNodeTokens)
	assert.Equal(t, 1, plan.HopCount)
	assert.Equal(t, 2, plan.MaxCandidates)
}

func TestDecide_UnknownIntentActsAsNewTopic(t *testing.T) {
	g := Default()
	assert.Equal(t, g.Decide(intent.NewTopic, 0.9, bigBudget), g.Decide("weird", 0.9, bigBudget))
}

func TestDecide_Pure(t *testing.T) {
	g := Default()
	a := g.Decide(intent.Recall, 0.7, 3000)
	b := g.Decide(intent.Recall, 0.7, 3000)
	assert.Equal(t, a, b)
}

func TestNew_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AvgNodeTokens = 0
	_, err := New(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.MinConfidence = 1.5
	_, err = New(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Policies = map[intent.Intent]Policy{intent.Recall: {Hops: 1, MaxNodes: 4, Guidance: "x"}}
	g, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Decide(intent.Recall, 0.9, bigBudget).HopCount)
	assert.Equal(t, 3, g.Decide(intent.MultiHop, 0.9, bigBudget).HopCount)
}
