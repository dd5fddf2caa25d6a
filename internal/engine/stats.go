package engine

import "context"

// Stats summarizes the engine's memory state.
type Stats struct {
	SessionID         string `json:"session_id"`
	TotalTurns        int    `json:"total_turns"`
	SlidingWindowSize int    `json:"sliding_window_size"`
	WindowCapacity    int    `json:"window_capacity"`
	DBPath            string `json:"db_path"`
	Model             string `json:"model"`
	ProfileVersion    int    `json:"profile_version"`
	ProfileFacts      int    `json:"profile_facts"`
	EmbeddingsOnline  bool   `json:"embeddings_online"`
	ReasoningOnline   bool   `json:"reasoning_online"`
	ExtractorOnline   bool   `json:"extractor_online"`
	SummarizerOnline  bool   `json:"summarizer_online"`
}

func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	total, err := e.deps.Turns.CountTurns(ctx)
	if err != nil {
		return nil, err
	}
	p := e.Profile()
	st := &Stats{
		SessionID:         e.sessionID,
		TotalTurns:        total,
		SlidingWindowSize: e.deps.Window.Len(),
		WindowCapacity:    e.deps.Window.Capacity(),
		DBPath:            e.cfg.DBPath,
		Model:             e.deps.Completer.Model(),
		ProfileVersion:    p.Version,
		ProfileFacts:      len(p.Facts),
		EmbeddingsOnline:  e.deps.Embedder != nil,
		ReasoningOnline:   e.deps.Reasoner != nil,
	}
	if w := e.deps.Worker; w != nil {
		st.ExtractorOnline = w.ExtractorOnline()
		st.SummarizerOnline = w.SummarizerOnline()
	}
	return st, nil
}
