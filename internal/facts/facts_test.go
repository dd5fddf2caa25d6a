package facts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/lattice-memory/internal/llm"
	"github.com/rcliao/lattice-memory/internal/model"
)

func reply(text string, err error) llm.Completer {
	return llm.Func(func(context.Context, llm.Request) (*llm.Response, error) {
		if err != nil {
			return nil, err
		}
		return &llm.Response{Content: text}, nil
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"none", "NONE", nil},
		{"none lowercase padded", "  none \n", nil},
		{"bullets", "- User lives in Lisbon\n* User has a dog\n• User likes jazz", []string{"User lives in Lisbon", "User has a dog", "User likes jazz"}},
		{"numbered", "1. User is vegan\n2) User runs marathons", []string{"User is vegan", "User runs marathons"}},
		{"blank and duplicate", "User is vegan\n\nuser is vegan\n", []string{"User is vegan"}},
		{"trailing none", "User is vegan\nNONE", []string{"User is vegan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.reply))
		})
	}
}

func TestLLMExtractor_Extract(t *testing.T) {
	e := New(reply("- User lives in Lisbon\n- User has a dog named Rex", nil))
	got, err := e.Extract(context.Background(), model.Turn{ID: "t1", Role: model.RoleUser, Text: "I live in Lisbon with my dog Rex"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].SourceTurnID)
	assert.False(t, got[0].ExtractedAt.IsZero())
	assert.Empty(t, got[0].ID)
}

func TestLLMExtractor_SkipsAssistantTurns(t *testing.T) {
	called := false
	e := New(llm.Func(func(context.Context, llm.Request) (*llm.Response, error) {
		called = true
		return &llm.Response{Content: "User x"}, nil
	}))
	got, err := e.Extract(context.Background(), model.Turn{ID: "t1", Role: model.RoleAssistant, Text: "Sure."})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, called)
}

func TestLLMExtractor_Error(t *testing.T) {
	e := New(reply("", llm.ErrUnavailable))
	_, err := e.Extract(context.Background(), model.Turn{ID: "t1", Role: model.RoleUser, Text: "hi"})
	assert.True(t, errors.Is(err, llm.ErrUnavailable))
}

func TestNewAndOnline(t *testing.T) {
	off := New(nil)
	assert.IsType(t, Nop{}, off)
	assert.False(t, Online(off))
	assert.False(t, Online(nil))

	got, err := off.Extract(context.Background(), model.Turn{Role: model.RoleUser, Text: "hi"})
	assert.NoError(t, err)
	assert.Empty(t, got)

	assert.True(t, Online(New(reply("NONE", nil))))
}
