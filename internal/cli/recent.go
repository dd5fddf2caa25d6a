package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent persisted turns",
		Run:   runRecent,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max turns")
	cmd.Flags().String("day", "", "Only turns from this day (YYYY-MM-DD)")

	RootCmd.AddCommand(cmd)
}

func runRecent(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	day, _ := cmd.Flags().GetString("day")

	s := openStore(loadConfig())
	defer s.Close()

	turns, err := s.RecentTurns(cmd.Context(), day, limit)
	if err != nil {
		exitErr("recent", err)
	}

	if !textFormat() {
		if len(turns) == 0 {
			fmt.Println("[]")
			return
		}
		printJSON(turns)
		return
	}
	for _, t := range turns {
		fmt.Printf("[%s #%d] %s: %s\n", t.DayID, t.Seq, t.Role, t.Text)
	}
}
