package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "List facts extracted from user turns, newest first",
		Run:   runFacts,
	}

	cmd.Flags().IntP("limit", "l", 50, "Max facts")

	RootCmd.AddCommand(cmd)
}

func runFacts(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s := openStore(loadConfig())
	defer s.Close()

	facts, err := s.ListFacts(cmd.Context(), limit)
	if err != nil {
		exitErr("list facts", err)
	}

	if !textFormat() {
		if len(facts) == 0 {
			fmt.Println("[]")
			return
		}
		printJSON(facts)
		return
	}
	for _, f := range facts {
		fmt.Printf("- %s\n", f.Text)
	}
}
