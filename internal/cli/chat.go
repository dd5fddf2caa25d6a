package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/lattice-memory/internal/app"
	"github.com/rcliao/lattice-memory/internal/engine"
	"github.com/rcliao/lattice-memory/internal/intent"
	"github.com/rcliao/lattice-memory/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func init() {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with memory",
		Long: "Send one message, or start an interactive session when no message is given.\n" +
			"In a session, /stats prints memory statistics, /clear empties the sliding window and /exit quits.",
		Run: runChat,
	}

	cmd.Flags().String("intent", "", "Force an intent: recall, new_topic, clarification or multi_hop")
	cmd.Flags().Bool("show-context", false, "Print the hydrated context blocks to stderr")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	forced, _ := cmd.Flags().GetString("intent")
	showContext, _ := cmd.Flags().GetBool("show-context")

	var opts []engine.Option
	if forced != "" {
		in, err := intent.Parse(forced)
		if err != nil {
			exitErr("intent", err)
		}
		opts = append(opts, engine.WithForcedIntent(in))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg := loadConfig()
	m := metrics.New()
	a := openApp(ctx, cfg, false, m)
	defer closeApp(a)

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, m)
		defer srv.Close()
	}

	if len(args) > 0 {
		resp, err := a.Engine.ProcessMessage(ctx, strings.Join(args, " "), opts...)
		if err != nil {
			printResponse(resp, showContext)
			closeApp(a)
			exitErr("chat", err)
		}
		printResponse(resp, showContext)
		return
	}

	fmt.Fprintln(os.Stderr, "lattice-memory chat: /stats, /clear, /exit")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return
		case "/clear":
			a.Engine.ClearSlidingWindow()
			fmt.Fprintln(os.Stderr, "sliding window cleared")
			continue
		case "/stats":
			st, err := a.Engine.Stats(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: stats: %v\n", err)
				continue
			}
			printJSON(st)
			continue
		}

		resp, err := a.Engine.ProcessMessage(ctx, line, opts...)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printResponse(resp, showContext)
	}
	if err := scanner.Err(); err != nil {
		exitErr("read stdin", err)
	}
}

func printResponse(resp *engine.Response, showContext bool) {
	if resp == nil {
		return
	}
	if showContext {
		for _, b := range resp.Context.Blocks {
			fmt.Fprintf(os.Stderr, "--- %s (%d tokens)\n%s\n", b.Kind, b.Tokens, b.Text)
		}
	}
	if !textFormat() {
		printJSON(resp)
		return
	}
	if resp.Status == engine.StatusError {
		return
	}
	fmt.Println(resp.Content)
	fmt.Fprintf(os.Stderr, "[%s %.2f, %d hops, %d memories, %d/%d tokens]\n",
		resp.Intent.Intent, resp.Intent.Confidence, resp.Plan.HopCount,
		resp.Metadata.Retrieved, resp.Metadata.ContextTokens, resp.Metadata.ContextBudget)
}

// closeApp drains the synthesis queue and saves the window within
// shutdownTimeout.
func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: close: %v\n", err)
	}
}

// serveMetrics exposes the registry on addr until the returned server is
// closed. A listener failure is reported and chat continues without it.
func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "error: metrics listener: %v\n", err)
		}
	}()
	return srv
}
