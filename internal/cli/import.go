package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/lattice-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import turns from JSON",
		Long: "Import turns from JSON (stdin or file). Expects the format produced by export. " +
			"Turns already present are skipped. Turns without an embedding are indexed unless --no-index is set.",
		Args: cobra.MaximumNArgs(1),
		Run:  runImport,
	}

	cmd.Flags().Bool("no-index", false, "Skip embedding imported turns")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	noIndex, _ := cmd.Flags().GetBool("no-index")

	var r io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open file", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		exitErr("read input", err)
	}

	var turns []model.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		exitErr("parse json", err)
	}

	ctx := cmd.Context()
	a := openApp(ctx, loadConfig(), true, nil)
	defer a.Close(ctx)

	imported, err := a.Store.Import(ctx, turns)
	if err != nil {
		exitErr("import", err)
	}

	indexed := 0
	if !noIndex && a.Embedder != nil {
		for _, t := range turns {
			stored, err := a.Store.GetTurn(ctx, t.ID)
			if err != nil || stored.EmbeddingRef != "" {
				continue
			}
			if err := a.Indexer.IndexTurn(ctx, *stored); err != nil {
				a.Logger.Warn("index imported turn failed", "turn", t.ID, "err", err)
				continue
			}
			indexed++
		}
	}

	fmt.Printf(`{"ok":true,"imported":%d,"indexed":%d}`+"\n", imported, indexed)
}
