package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string     `json:"db_path"`
	DBSizeBytes int64      `json:"db_size_bytes"`
	TotalTurns  int        `json:"total_turns"`
	TotalNodes  int        `json:"total_nodes"`
	TotalChunks int        `json:"total_chunks"`
	TotalFacts  int        `json:"total_facts"`
	Days        []DayStats `json:"days"`
}

// DayStats holds per-day turn counts.
type DayStats struct {
	DayID string `json:"day_id"`
	Turns int    `json:"turns"`
}

// Stats returns database statistics. Days lists the most recent days first.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&st.TotalTurns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&st.TotalNodes)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.TotalChunks)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&st.TotalFacts)

	rows, err := s.db.QueryContext(ctx, `
		SELECT day_id, COUNT(*) FROM turns
		GROUP BY day_id ORDER BY day_id DESC LIMIT 30`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var d DayStats
		rows.Scan(&d.DayID, &d.Turns)
		st.Days = append(st.Days, d)
	}

	return st, nil
}
