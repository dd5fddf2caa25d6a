package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/lattice-memory/internal/llm"
	"github.com/rcliao/lattice-memory/internal/model"
)

func TestHeuristic(t *testing.T) {
	afterAssistant := []model.Turn{
		{Role: model.RoleUser, Text: "How do I brew pour-over coffee?"},
		{Role: model.RoleAssistant, Text: "Use a 1:16 ratio and 93C water."},
	}

	tests := []struct {
		name    string
		message string
		recent  []model.Turn
		want    Intent
	}{
		{"recall cue", "Do you remember what I said about my dog?", nil, Recall},
		{"recall you said", "What was the restaurant you said was good?", nil, Recall},
		{"clarification cue", "What do you mean by ratio?", afterAssistant, Clarification},
		{"pronoun follow-up", "that seems hot", afterAssistant, Clarification},
		{"pronoun without assistant turn", "that seems hot", nil, NewTopic},
		{"multi hop", "Remember my trips? Compare the Lisbon and Porto hotels.", nil, MultiHop},
		{"new topic", "Let's plan a vegetable garden for spring.", nil, NewTopic},
	}
	h := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Classify(context.Background(), tt.message, tt.recent)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Intent)
			assert.Equal(t, ModeHeuristic, res.Strategy)
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
		})
	}
}

func TestHeuristic_Terms(t *testing.T) {
	res, _ := NewHeuristic().Classify(context.Background(), "Remember when Maria visited Tokyo?", nil)
	assert.Equal(t, []string{"Maria", "Tokyo", "visited"}, res.Terms)
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Intent{
		"recall": Recall, "multi-hop": MultiHop, "Multi Hop": MultiHop,
		"new_topic": NewTopic, "clarify": Clarification,
	} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := Parse("banana")
	assert.Error(t, err)
}

func TestModel_UsesReply(t *testing.T) {
	reasoner := llm.Func(func(context.Context, llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "multi_hop|0.82"}, nil
	})
	res, err := NewModel(reasoner, nil).Classify(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, MultiHop, res.Intent)
	assert.InDelta(t, 0.82, res.Confidence, 1e-9)
	assert.Equal(t, ModeModel, res.Strategy)
	assert.False(t, res.Degraded)
}

func TestModel_FallsBackOnError(t *testing.T) {
	reasoner := llm.Func(func(context.Context, llm.Request) (*llm.Response, error) {
		return nil, llm.ErrUnavailable
	})
	res, err := NewModel(reasoner, nil).Classify(context.Background(), "Do you remember my dog's name?", nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, Recall, res.Intent)
	assert.Equal(t, ModeHeuristic, res.Strategy)
}

func TestModel_FallsBackOnGarbage(t *testing.T) {
	reasoner := llm.Func(func(context.Context, llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "I think the user wants to chat"}, nil
	})
	res, err := NewModel(reasoner, nil).Classify(context.Background(), "hello there", nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
}

func TestNew(t *testing.T) {
	a, err := New("", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &Heuristic{}, a)

	a, err = New(ModeModel, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &Heuristic{}, a, "model mode without reasoner degrades")

	reasoner := llm.Func(func(context.Context, llm.Request) (*llm.Response, error) { return nil, errors.New("x") })
	a, err = New(ModeModel, reasoner, nil)
	require.NoError(t, err)
	assert.IsType(t, &Model{}, a)

	_, err = New("psychic", nil, nil)
	assert.Error(t, err)
}

func TestForced(t *testing.T) {
	res := Forced(Recall, "hi")
	assert.Equal(t, Recall, res.Intent)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, ModeForced, res.Strategy)
}
