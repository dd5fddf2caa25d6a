package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/lattice-memory/internal/model"
)

// ExportAll returns every turn with its facts, oldest first, optionally
// filtered to one day.
func (s *SQLiteStore) ExportAll(ctx context.Context, dayID string) ([]model.Turn, error) {
	where := []string{"1 = 1"}
	args := []interface{}{}

	if dayID != "" {
		where = append(where, "day_id = ?")
		args = append(args, dayID)
	}

	query := `SELECT ` + turnColumns + ` FROM turns WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at, seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var turns []model.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		turns = append(turns, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range turns {
		facts, err := s.factsForTurn(ctx, turns[i].ID)
		if err != nil {
			return nil, err
		}
		turns[i].Facts = facts
	}
	return turns, nil
}

// Import stores turns from an export, keeping their IDs and timestamps.
// Turns whose ID already exists are skipped. Sequence numbers are reassigned
// per day. Embeddings are not part of an export; callers re-index.
func (s *SQLiteStore) Import(ctx context.Context, turns []model.Turn) (int, error) {
	imported := 0
	for _, t := range turns {
		ok, err := s.importTurn(ctx, t)
		if err != nil {
			return imported, fmt.Errorf("import turn %s: %w", t.ID, err)
		}
		if !ok {
			continue
		}
		if err := s.AppendFacts(ctx, t.Facts); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func (s *SQLiteStore) importTurn(ctx context.Context, t model.Turn) (bool, error) {
	if strings.TrimSpace(t.Text) == "" {
		return false, ErrEmptyTurn
	}
	if !model.ValidRoles[t.Role] {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, t.Role)
	}
	created := t.CreatedAt.UTC()
	if t.CreatedAt.IsZero() {
		created = time.Now().UTC()
	}
	dayID := model.DayID(created)
	if t.ID == "" {
		t.ID = s.newID(created)
	}

	mu := s.dayLock(dayID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists int
	tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE id = ?`, t.ID).Scan(&exists)
	if exists > 0 {
		return false, nil
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE day_id = ?`, dayID).Scan(&seq); err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, day_id, seq, role, text, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, dayID, seq, string(t.Role), t.Text, created.Format(timeLayout))
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}
