package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rcliao/lattice-memory/internal/model"
)

// Search finds turns whose text or chunks contain the query substring,
// newest first.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if strings.TrimSpace(p.Query) == "" {
		return nil, fmt.Errorf("search: empty query")
	}

	query := "%" + p.Query + "%"

	where := []string{"(t.text LIKE ? OR c.text LIKE ?)"}
	args := []interface{}{query, query}

	if p.Role != "" {
		where = append(where, "t.role = ?")
		args = append(args, string(p.Role))
	}

	sqlText := fmt.Sprintf(`
		SELECT t.id, t.day_id, t.seq, t.role, t.text, t.created_at, t.embedding_ref,
		       c.id, c.seq, c.byte_offset, c.text
		FROM turns t
		LEFT JOIN chunks c ON c.turn_id = t.id AND c.text LIKE ?
		WHERE %s
		ORDER BY t.created_at DESC, c.seq ASC
		LIMIT ?`, strings.Join(where, " AND "))

	args = append([]interface{}{query}, args...)
	args = append(args, limit*4)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("search turns: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	seen := map[string]bool{}
	for rows.Next() {
		var t model.Turn
		var role, createdAt string
		var ref, chunkID, chunkText sql.NullString
		var chunkSeq, chunkOffset sql.NullInt64

		if err := rows.Scan(&t.ID, &t.DayID, &t.Seq, &role, &t.Text, &createdAt, &ref,
			&chunkID, &chunkSeq, &chunkOffset, &chunkText); err != nil {
			return nil, err
		}
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		t.Role = model.Role(role)
		t.CreatedAt = parseTime(createdAt)
		t.EmbeddingRef = ref.String

		r := SearchResult{Turn: t}
		if chunkID.Valid {
			r.MatchChunk = &model.Chunk{
				ID:     chunkID.String,
				TurnID: t.ID,
				Seq:    int(chunkSeq.Int64),
				Offset: int(chunkOffset.Int64),
				Text:   chunkText.String,
			}
		}
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}

	return results, rows.Err()
}
