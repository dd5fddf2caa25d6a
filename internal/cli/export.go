package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export turns as JSON",
		Long:  "Export every persisted turn, with its extracted facts, as a JSON array. Filter by day with --day.",
		Run:   runExport,
	}

	cmd.Flags().String("day", "", "Only turns from this day (YYYY-MM-DD)")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	day, _ := cmd.Flags().GetString("day")

	s := openStore(loadConfig())
	defer s.Close()

	turns, err := s.ExportAll(cmd.Context(), day)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(turns)
}
