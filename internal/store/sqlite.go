package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/lattice-memory/internal/model"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const defaultRecentLimit = 20

// SQLiteStore implements TurnStore, NodeIndex and FactLog using SQLite.
type SQLiteStore struct {
	db *sql.DB

	idMu    sync.Mutex
	entropy *rand.Rand

	dayMu    sync.Mutex
	dayLocks map[string]*sync.Mutex
}

var (
	_ TurnStore = (*SQLiteStore)(nil)
	_ NodeIndex = (*SQLiteStore)(nil)
	_ FactLog   = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
		dayLocks: make(map[string]*sync.Mutex),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// dayLock returns the writer lock for one day partition.
func (s *SQLiteStore) dayLock(dayID string) *sync.Mutex {
	s.dayMu.Lock()
	defer s.dayMu.Unlock()
	mu, ok := s.dayLocks[dayID]
	if !ok {
		mu = &sync.Mutex{}
		s.dayLocks[dayID] = mu
	}
	return mu
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id            TEXT PRIMARY KEY,
		day_id        TEXT NOT NULL,
		seq           INTEGER NOT NULL,
		role          TEXT NOT NULL,
		text          TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		embedding_ref TEXT,
		UNIQUE (day_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at DESC);

	CREATE TABLE IF NOT EXISTS nodes (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		turn_id    TEXT NOT NULL REFERENCES turns(id),
		role       TEXT,
		text       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		dims       INTEGER NOT NULL,
		embedding  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_turn ON nodes(turn_id);
	CREATE INDEX IF NOT EXISTS idx_nodes_created ON nodes(created_at DESC);

	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		turn_id     TEXT NOT NULL REFERENCES turns(id),
		seq         INTEGER NOT NULL,
		byte_offset INTEGER NOT NULL,
		text        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_turn ON chunks(turn_id);

	CREATE TABLE IF NOT EXISTS facts (
		id             TEXT PRIMARY KEY,
		text           TEXT NOT NULL,
		source_turn_id TEXT NOT NULL,
		extracted_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_facts_turn ON facts(source_turn_id);
	CREATE INDEX IF NOT EXISTS idx_facts_extracted ON facts(extracted_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AppendTurn validates and durably writes a turn. The day sequence number is
// assigned under the day's writer lock inside a transaction.
func (s *SQLiteStore) AppendTurn(ctx context.Context, p TurnParams) (*model.Turn, error) {
	if strings.TrimSpace(p.Text) == "" {
		return nil, ErrEmptyTurn
	}
	if !model.ValidRoles[p.Role] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, p.Role)
	}

	now := p.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	dayID := model.DayID(now)
	id := s.newID(now)

	mu := s.dayLock(dayID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE day_id = ?`, dayID).Scan(&seq); err != nil {
		return nil, fmt.Errorf("next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, day_id, seq, role, text, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, dayID, seq, string(p.Role), p.Text, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}

	return &model.Turn{
		ID:        id,
		DayID:     dayID,
		Seq:       seq,
		Role:      p.Role,
		Text:      p.Text,
		CreatedAt: now,
	}, nil
}

const turnColumns = `id, day_id, seq, role, text, created_at, embedding_ref`

func (s *SQLiteStore) RecentTurns(ctx context.Context, dayID string, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	query := `SELECT ` + turnColumns + ` FROM turns`
	var args []interface{}
	if dayID != "" {
		query += ` WHERE day_id = ?`
		args = append(args, dayID)
	}
	query += ` ORDER BY created_at DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest last
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *SQLiteStore) GetTurn(ctx context.Context, id string) (*model.Turn, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+turnColumns+` FROM turns WHERE id = ?`, id)
	t, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: turn %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	facts, err := s.factsForTurn(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Facts = facts
	return &t, nil
}

func (s *SQLiteStore) CountTurns(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTurn(row scanner) (model.Turn, error) {
	var t model.Turn
	var role, createdAt string
	var ref sql.NullString

	if err := row.Scan(&t.ID, &t.DayID, &t.Seq, &role, &t.Text, &createdAt, &ref); err != nil {
		return t, err
	}
	t.Role = model.Role(role)
	t.CreatedAt = parseTime(createdAt)
	if ref.Valid {
		t.EmbeddingRef = ref.String
	}
	return t, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
