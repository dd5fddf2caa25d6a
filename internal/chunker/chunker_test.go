package chunker

import (
	"errors"
	"strings"
	"testing"
)

func TestSplit_EmptyInput(t *testing.T) {
	result, err := Split("", DefaultOptions())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestSplit_ShortContent(t *testing.T) {
	text := "  This is a short turn.  "
	result, err := Split(text, DefaultOptions())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(result))
	}
	if result[0].Text != "This is a short turn." {
		t.Errorf("unexpected text %q", result[0].Text)
	}
	if result[0].Offset != 2 {
		t.Errorf("expected offset 2, got %d", result[0].Offset)
	}
}

func TestSplit_ExactlyTargetIsSingleChunk(t *testing.T) {
	opts := Options{TargetSize: 50, Overlap: 10}
	text := strings.Repeat("a", 50)
	result, err := Split(text, opts)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(result))
	}
}

func TestSplit_SplitsOnHeadings(t *testing.T) {
	section := strings.Repeat("Some content filling space. ", 12)
	text := "# Section One\n\n" + section + "\n\n# Section Two\n\n" + section + "\n\n# Section Three\n\n" + section

	result, err := Split(text, Options{TargetSize: 400, Overlap: 40})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(result) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(result))
	}
	if !strings.Contains(result[0].Text, "Section One") {
		t.Errorf("first chunk should contain 'Section One', got %q", result[0].Text)
	}
}

func TestSplit_RespectsTargetPlusOverlap(t *testing.T) {
	opts := Options{TargetSize: 200, Overlap: 30}
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "This is a line of text that is about fifty characters long.")
	}
	text := strings.Join(lines, "\n")

	result, err := Split(text, opts)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(result) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(result))
	}
	for i, p := range result {
		if len(p.Text) > opts.TargetSize+opts.Overlap {
			t.Errorf("chunk %d has %d bytes", i, len(p.Text))
		}
		if text[p.Offset:p.Offset+len(p.Text)] != p.Text {
			t.Errorf("chunk %d offset %d does not address its text", i, p.Offset)
		}
		if p.Seq != i {
			t.Errorf("chunk %d has seq %d", i, p.Seq)
		}
	}
}

func TestSplit_OverlapSharesBoundaryText(t *testing.T) {
	words := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")
	opts := Options{TargetSize: 100, Overlap: 20}

	result, err := Split(text, opts)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(result) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(result))
	}
	for i := 1; i < len(result); i++ {
		prevEnd := result[i-1].Offset + len(result[i-1].Text)
		if result[i].Offset >= prevEnd {
			t.Errorf("chunk %d starts at %d, previous ends at %d: no overlap", i, result[i].Offset, prevEnd)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	para := strings.Repeat("This is a sentence. ", 15)
	text := para + "\n\n" + para + "\n\n" + para
	opts := Options{TargetSize: 400, Overlap: 50}

	a, err := Split(text, opts)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	b, _ := Split(text, opts)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs", i)
		}
	}
}

func TestSplit_NoSpacesFallsBackToHardCut(t *testing.T) {
	text := strings.Repeat("é", 300)
	result, err := Split(text, Options{TargetSize: 101, Overlap: 0})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(result) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(result))
	}
	joined := ""
	for _, p := range result {
		joined += p.Text
	}
	if joined != text {
		t.Error("hard cut lost or split runes")
	}
}

func TestSplit_InvalidOptions(t *testing.T) {
	tests := []Options{
		{TargetSize: -1},
		{TargetSize: 100, Overlap: 100},
		{TargetSize: 100, Overlap: -5},
	}
	for _, opts := range tests {
		if _, err := Split("hello", opts); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("Split(%+v) = %v, want ErrInvalidOptions", opts, err)
		}
	}
}

func TestSplit_TooLarge(t *testing.T) {
	opts := Options{TargetSize: 10, Overlap: 0, MaxSize: 20}
	if _, err := Split(strings.Repeat("x", 21), opts); !errors.Is(err, ErrTextTooLarge) {
		t.Fatalf("expected ErrTextTooLarge, got %v", err)
	}
}
