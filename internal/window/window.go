// Package window holds the bounded, in-memory cache of the most recent
// turns: the short-term memory every prompt starts from.
package window

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rcliao/lattice-memory/internal/model"
)

const (
	DefaultCapacity = 15
	MaxCapacity     = 1000
)

// ErrInvalidCapacity is returned for a capacity outside [1, MaxCapacity].
var ErrInvalidCapacity = errors.New("window: capacity must be between 1 and 1000")

// Source backfills the window from durable storage.
type Source interface {
	RecentTurns(ctx context.Context, dayID string, limit int) ([]model.Turn, error)
}

// Window is a FIFO of the last Capacity turns. Safe for concurrent use.
type Window struct {
	mu       sync.RWMutex
	capacity int
	turns    []model.Turn
}

// New creates an empty window.
func New(capacity int) (*Window, error) {
	if capacity < 1 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Window{capacity: capacity, turns: make([]model.Turn, 0, capacity)}, nil
}

// Add appends a turn and evicts the oldest turns beyond capacity.
func (w *Window) Add(t model.Turn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = append(w.turns, t)
	if over := len(w.turns) - w.capacity; over > 0 {
		w.turns = append(w.turns[:0:0], w.turns[over:]...)
	}
}

// Turns returns a copy of the window, oldest first.
func (w *Window) Turns() []model.Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]model.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.turns)
}

func (w *Window) Capacity() int { return w.capacity }

// Clear empties the window. Durable storage is not touched.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = w.turns[:0]
}

type snapshot struct {
	Capacity int          `json:"capacity"`
	Turns    []model.Turn `json:"turns"`
}

// Save writes the window to path atomically.
func (w *Window) Save(path string) error {
	data, err := json.MarshalIndent(snapshot{Capacity: w.capacity, Turns: w.Turns()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode window: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create window dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write window: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename window: %w", err)
	}
	return nil
}

// Load reads a snapshot into a window of the given capacity. A missing file
// yields an empty window. When the snapshot holds more turns than capacity
// the newest are kept.
func Load(path string, capacity int) (*Window, error) {
	w, err := New(capacity)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read window: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode window: %w", err)
	}
	for _, t := range snap.Turns {
		w.Add(t)
	}
	return w, nil
}

// Restore rebuilds the window at startup. The snapshot wins; an empty or
// unreadable snapshot falls back to the newest turns from source. A failed
// backfill is logged and leaves the window empty.
func Restore(ctx context.Context, path string, capacity int, source Source, logger *slog.Logger) (*Window, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := Load(path, capacity)
	if err != nil {
		if errors.Is(err, ErrInvalidCapacity) {
			return nil, err
		}
		logger.Warn("window snapshot unreadable, backfilling from store", "path", path, "err", err)
		w, _ = New(capacity)
	}
	if w.Len() > 0 || source == nil {
		return w, nil
	}

	turns, err := source.RecentTurns(ctx, "", capacity)
	if err != nil {
		logger.Warn("window backfill failed", "err", err)
		return w, nil
	}
	for _, t := range turns {
		w.Add(t)
	}
	logger.Debug("window backfilled", "turns", w.Len())
	return w, nil
}
