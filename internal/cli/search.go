package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/lattice-memory/internal/intent"
	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/store"
)

type searchOutput struct {
	Intent  intent.Result       `json:"intent"`
	Plan    model.RetrievalPlan `json:"plan"`
	Results []model.ScoredNode  `json:"results"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memory",
		Long: "Run the retrieval crawler for a query without calling the chat model. The intent is\n" +
			"classified heuristically unless --intent is given. --substring searches turn text instead.",
		Args: cobra.MinimumNArgs(1),
		Run:  runSearch,
	}

	cmd.Flags().String("intent", "", "Force an intent: recall, new_topic, clarification or multi_hop")
	cmd.Flags().Int("hops", 0, "Override the planned hop count")
	cmd.Flags().IntP("limit", "l", 0, "Override the planned candidate count")
	cmd.Flags().Bool("substring", false, "Plain substring search over turns and chunks")
	cmd.Flags().String("role", "", "With --substring, only turns from this role")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	query := strings.Join(args, " ")
	if substring, _ := cmd.Flags().GetBool("substring"); substring {
		runSubstringSearch(cmd, query)
		return
	}

	forced, _ := cmd.Flags().GetString("intent")
	hops, _ := cmd.Flags().GetInt("hops")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := cmd.Context()
	cfg := loadConfig()
	a := openApp(ctx, cfg, true, nil)
	defer a.Close(ctx)

	var res intent.Result
	if forced != "" {
		in, err := intent.Parse(forced)
		if err != nil {
			exitErr("intent", err)
		}
		res = intent.Forced(in, query)
	} else {
		var err error
		res, err = intent.NewHeuristic().Classify(ctx, query, a.Window.Turns())
		if err != nil {
			exitErr("classify", err)
		}
	}

	plan := a.Governor.DecideResult(res, cfg.Context.Budget)
	if hops > 0 {
		plan.HopCount = hops
	}
	if limit > 0 {
		plan.MaxCandidates = limit
	}

	nodes, err := a.Crawler.Search(ctx, query, plan)
	if err != nil {
		exitErr("search", err)
	}

	if !textFormat() {
		printJSON(searchOutput{Intent: res, Plan: plan, Results: nodes})
		return
	}
	fmt.Printf("intent %s (%.2f), %d hops, max %d, threshold %.2f\n",
		res.Intent, res.Confidence, plan.HopCount, plan.MaxCandidates, plan.ScoreThreshold)
	for _, n := range nodes {
		fmt.Printf("%.3f sim=%.3f rec=%.3f hop=%d [%s] %s\n",
			n.Score, n.Similarity, n.Recency, n.Hop, model.DayID(n.Node.CreatedAt), n.Node.Text)
	}
}

func runSubstringSearch(cmd *cobra.Command, query string) {
	role, _ := cmd.Flags().GetString("role")
	limit, _ := cmd.Flags().GetInt("limit")

	s := openStore(loadConfig())
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		Query: query,
		Role:  model.Role(role),
		Limit: limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(results)
}
