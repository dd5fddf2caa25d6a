// Package cli implements the lattice-memory CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/lattice-memory/internal/app"
	"github.com/rcliao/lattice-memory/internal/config"
	"github.com/rcliao/lattice-memory/internal/metrics"
	"github.com/rcliao/lattice-memory/internal/store"
)

var (
	configPath string
	dbPath     string
	dataDir    string
	formatFlag string
	logLevel   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "lattice-memory",
	Short: "Tiered conversational memory for a chat assistant",
	Long: "A chat front end with a sliding window of recent turns, a durable SQLite turn log, " +
		"semantic retrieval over embedded turns and a synthesized user profile.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $LATTICE_CONFIG or ~/.lattice-memory/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $LATTICE_DB or <data-dir>/memory.db)")
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory for the window snapshot, profile and vectors")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig() *config.Config {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	return cfg.Log.Logger(os.Stderr)
}

// openApp builds the application. Offline skips the completion provider,
// which every command except chat can do without.
func openApp(ctx context.Context, cfg *config.Config, offline bool, m *metrics.Metrics) *app.App {
	a, err := app.Build(ctx, cfg, app.Options{
		Offline:        offline,
		StartScheduler: !offline,
		Metrics:        m,
		Logger:         newLogger(cfg),
	})
	if err != nil {
		exitErr("start", err)
	}
	return a
}

func openStore(cfg *config.Config) *store.SQLiteStore {
	s, err := store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

func textFormat() bool { return formatFlag == "text" }

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
