package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/lattice-memory/internal/store"
)

type statsOutput struct {
	*store.Stats
	SlidingWindowSize int    `json:"sliding_window_size"`
	WindowCapacity    int    `json:"window_capacity"`
	ProfileVersion    int    `json:"profile_version"`
	ProfileFacts      int    `json:"profile_facts"`
	Provider          string `json:"provider"`
	EmbeddingProvider string `json:"embedding_provider"`
	VectorBackend     string `json:"vector_backend"`
	EmbeddingsOnline  bool   `json:"embeddings_online"`
	ReasoningOnline   bool   `json:"reasoning_online"`
	ExtractorOnline   bool   `json:"extractor_online"`
	SummarizerOnline  bool   `json:"summarizer_online"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	cfg := loadConfig()
	a := openApp(ctx, cfg, true, nil)
	defer a.Close(ctx)

	st, err := a.Store.Stats(ctx, cfg.DBPath())
	if err != nil {
		exitErr("stats", err)
	}
	p := a.Worker.Profile()

	printJSON(statsOutput{
		Stats:             st,
		SlidingWindowSize: a.Window.Len(),
		WindowCapacity:    a.Window.Capacity(),
		ProfileVersion:    p.Version,
		ProfileFacts:      len(p.Facts),
		Provider:          cfg.LLM.Provider,
		EmbeddingProvider: cfg.Embedding.Provider,
		VectorBackend:     cfg.Retrieval.VectorBackend,
		EmbeddingsOnline:  a.Embedder != nil,
		ReasoningOnline:   a.Reasoner != nil,
		ExtractorOnline:   a.Worker.ExtractorOnline(),
		SummarizerOnline:  a.Worker.SummarizerOnline(),
	})
}
