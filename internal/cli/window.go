package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Inspect or clear the sliding window",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the turns in the sliding window, oldest first",
		Args:  cobra.NoArgs,
		Run:   runWindowShow,
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the sliding window (durable turns are kept)",
		Args:  cobra.NoArgs,
		Run:   runWindowClear,
	}

	cmd.AddCommand(show, clearCmd)
	RootCmd.AddCommand(cmd)
}

func runWindowShow(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	a := openApp(ctx, loadConfig(), true, nil)
	defer a.Close(ctx)

	turns := a.Window.Turns()
	if !textFormat() {
		printJSON(map[string]interface{}{
			"capacity": a.Window.Capacity(),
			"size":     len(turns),
			"turns":    turns,
		})
		return
	}
	fmt.Printf("%d/%d turns\n", len(turns), a.Window.Capacity())
	for _, t := range turns {
		fmt.Printf("%s: %s\n", t.Role, t.Text)
	}
}

func runWindowClear(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	cfg := loadConfig()
	a := openApp(ctx, cfg, true, nil)
	defer a.Close(ctx)

	cleared := a.Window.Len()
	a.Window.Clear()
	if err := a.Window.Save(cfg.WindowPath()); err != nil {
		exitErr("save window", err)
	}
	fmt.Printf(`{"ok":true,"cleared":%d}`+"\n", cleared)
}
