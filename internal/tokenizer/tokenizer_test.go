package tokenizer

import (
	"strings"
	"testing"
)

func TestCharEstimator(t *testing.T) {
	e := NewCharEstimator(0)
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 2},
		{strings.Repeat("x", 400), 101},
	}
	for _, tt := range tests {
		if got := e.Count(tt.text); got != tt.want {
			t.Errorf("Count(%d chars) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestCharEstimator_NeverUndercounts(t *testing.T) {
	e := NewCharEstimator(4)
	for n := 1; n < 200; n++ {
		if got := e.Count(strings.Repeat("y", n)); float64(got) < float64(n)/4 {
			t.Fatalf("Count(%d) = %d undercounts", n, got)
		}
	}
}

func TestNew_CharsKind(t *testing.T) {
	if _, ok := New("chars", nil).(*CharEstimator); !ok {
		t.Fatal("expected CharEstimator for kind chars")
	}
}

func TestTiktoken(t *testing.T) {
	tk, err := NewTiktoken("")
	if err != nil {
		t.Skipf("encoding not available offline: %v", err)
	}
	if n := tk.Count("hello world"); n != 2 {
		t.Errorf("expected 2 tokens, got %d", n)
	}
	if tk.Count("") != 0 {
		t.Error("empty text should count 0")
	}
}
