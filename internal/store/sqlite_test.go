package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rcliao/lattice-memory/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndGetTurn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	turn, err := s.AppendTurn(ctx, TurnParams{Role: model.RoleUser, Text: "hello world"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if turn.ID == "" {
		t.Error("expected non-empty ID")
	}
	if turn.Seq != 1 {
		t.Errorf("expected seq 1, got %d", turn.Seq)
	}
	if turn.DayID != model.DayID(turn.CreatedAt) {
		t.Errorf("day id %q does not match created_at %v", turn.DayID, turn.CreatedAt)
	}

	got, err := s.GetTurn(ctx, turn.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "hello world" || got.Role != model.RoleUser {
		t.Errorf("unexpected turn %+v", got)
	}
	if !got.CreatedAt.Equal(turn.CreatedAt) {
		t.Errorf("created_at round trip: %v != %v", got.CreatedAt, turn.CreatedAt)
	}
}

func TestAppendTurn_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.AppendTurn(ctx, TurnParams{Role: model.RoleUser, Text: "   "}); !errors.Is(err, ErrEmptyTurn) {
		t.Errorf("expected ErrEmptyTurn, got %v", err)
	}
	if _, err := s.AppendTurn(ctx, TurnParams{Role: "system", Text: "x"}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
	n, _ := s.CountTurns(ctx)
	if n != 0 {
		t.Errorf("rejected turns must not be persisted, got %d", n)
	}
}

func TestGetTurn_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetTurn(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSeqPerDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	a, _ := s.AppendTurn(ctx, TurnParams{Role: model.RoleUser, Text: "a", CreatedAt: day1})
	b, _ := s.AppendTurn(ctx, TurnParams{Role: model.RoleAssistant, Text: "b", CreatedAt: day1.Add(time.Minute)})
	c, _ := s.AppendTurn(ctx, TurnParams{Role: model.RoleUser, Text: "c", CreatedAt: day2})

	if a.Seq != 1 || b.Seq != 2 {
		t.Errorf("expected seq 1,2 on day one, got %d,%d", a.Seq, b.Seq)
	}
	if c.Seq != 1 || c.DayID != "2025-03-02" {
		t.Errorf("expected seq 1 on 2025-03-02, got %d on %s", c.Seq, c.DayID)
	}
}

func TestAppendTurn_ConcurrentSameDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AppendTurn(ctx, TurnParams{Role: model.RoleUser, Text: "concurrent"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}

	turns, err := s.RecentTurns(ctx, "", n)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	seen := map[int]bool{}
	for _, turn := range turns {
		if seen[turn.Seq] {
			t.Fatalf("duplicate seq %d", turn.Seq)
		}
		seen[turn.Seq] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct seqs, got %d", n, len(seen))
	}
}

func TestRecentTurns_Chronological(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"t1", "t2", "t3", "t4", "t5"} {
		s.AppendTurn(ctx, TurnParams{Role: model.RoleUser, Text: text, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	turns, err := s.RecentTurns(ctx, "", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3, got %d", len(turns))
	}
	want := []string{"t3", "t4", "t5"}
	for i, turn := range turns {
		if turn.Text != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], turn.Text)
		}
	}

	// Day filter
	s.AppendTurn(ctx, TurnParams{Role: model.RoleUser, Text: "next day", CreatedAt: base.Add(30 * time.Hour)})
	day, _ := s.RecentTurns(ctx, "2025-03-01", 100)
	if len(day) != 5 {
		t.Errorf("expected 5 turns on 2025-03-01, got %d", len(day))
	}
}

func TestFacts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	turn, _ := s.AppendTurn(ctx, TurnParams{Role: model.RoleUser, Text: "I live in Lisbon and have a dog named Rex"})
	facts := []model.Fact{
		{Text: "User lives in Lisbon", SourceTurnID: turn.ID},
		{Text: "User has a dog named Rex", SourceTurnID: turn.ID},
		{Text: "  ", SourceTurnID: turn.ID},
	}
	if err := s.AppendFacts(ctx, facts); err != nil {
		t.Fatalf("append facts: %v", err)
	}
	if facts[0].ID == "" {
		t.Error("expected fact ID to be assigned")
	}

	// Write-once: re-appending the same IDs is a no-op.
	if err := s.AppendFacts(ctx, facts[:2]); err != nil {
		t.Fatalf("re-append: %v", err)
	}

	list, err := s.ListFacts(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(list))
	}

	got, _ := s.GetTurn(ctx, turn.ID)
	if len(got.Facts) != 2 {
		t.Errorf("expected turn to carry 2 facts, got %d", len(got.Facts))
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestReopenKeepsTurns(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	s1.AppendTurn(ctx, TurnParams{Role: model.RoleUser, Text: "persisted"})
	s1.Close()

	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	n, _ := s2.CountTurns(ctx)
	if n != 1 {
		t.Fatalf("expected 1 turn after reopen, got %d", n)
	}
}
