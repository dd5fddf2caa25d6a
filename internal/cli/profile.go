package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/lattice-memory/internal/synthesis"
)

func init() {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the synthesized user profile",
		Long:  "Show the user profile. With --format text the profile file is printed as stored.",
		Run:   runProfile,
	}

	RootCmd.AddCommand(cmd)
}

func runProfile(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	fs, err := synthesis.NewFileStore(cfg.ProfilePath())
	if err != nil {
		exitErr("open profile", err)
	}
	p, err := fs.Load(cmd.Context())
	if err != nil {
		exitErr("load profile", err)
	}

	if !textFormat() {
		printJSON(struct {
			Path string `json:"path"`
			synthesis.UserProfile
		}{fs.Path(), p})
		return
	}
	raw, err := synthesis.SerializeProfile(p)
	if err != nil {
		exitErr("render profile", err)
	}
	fmt.Print(string(raw))
}
