package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/lattice-memory/internal/model"
)

// AppendFacts writes facts in one transaction. Facts without an ID get one;
// a zero ExtractedAt becomes now. Facts are write-once, so a repeated ID is
// ignored.
func (s *SQLiteStore) AppendFacts(ctx context.Context, facts []model.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range facts {
		f := &facts[i]
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		if f.ExtractedAt.IsZero() {
			f.ExtractedAt = now
		}
		if f.ID == "" {
			f.ID = s.newID(f.ExtractedAt)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO facts (id, text, source_turn_id, extracted_at) VALUES (?, ?, ?, ?)`,
			f.ID, f.Text, f.SourceTurnID, f.ExtractedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert fact: %w", err)
		}
	}

	return tx.Commit()
}

// ListFacts returns up to limit facts, newest first.
func (s *SQLiteStore) ListFacts(ctx context.Context, limit int) ([]model.Fact, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return s.queryFacts(ctx,
		`SELECT id, text, source_turn_id, extracted_at FROM facts
		 ORDER BY extracted_at DESC, id DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) factsForTurn(ctx context.Context, turnID string) ([]model.Fact, error) {
	return s.queryFacts(ctx,
		`SELECT id, text, source_turn_id, extracted_at FROM facts
		 WHERE source_turn_id = ? ORDER BY extracted_at, id`, turnID)
}

func (s *SQLiteStore) queryFacts(ctx context.Context, query string, args ...interface{}) ([]model.Fact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		var f model.Fact
		var extractedAt string
		if err := rows.Scan(&f.ID, &f.Text, &f.SourceTurnID, &extractedAt); err != nil {
			return nil, err
		}
		f.ExtractedAt = parseTime(extractedAt)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
