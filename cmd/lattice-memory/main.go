package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/rcliao/lattice-memory/internal/cli"
)

func main() {
	// A local .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
