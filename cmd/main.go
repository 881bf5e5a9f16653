package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/meghashyamc/churnsearch/config"
	"github.com/spf13/cobra"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "churnsearch",
		Short: "Asynchronous search over customer churn records",
		Long: `churnsearch serves an asynchronous search API over customer churn records
and browses its results from the terminal.

Environment variables:
  ENV          selects config/config.<ENV>.yaml (default: local)
  SERVER_URL   server the client commands talk to`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("server", "", "server URL (overrides SERVER_URL and config)")

	rootCmd.AddCommand(serveCmd(cfg))
	rootCmd.AddCommand(seedCmd(cfg))
	rootCmd.AddCommand(searchCmd(cfg))
	rootCmd.AddCommand(browseCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
