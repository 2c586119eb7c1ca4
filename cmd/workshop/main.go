package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "workshop",
		Short:         "Workshop state server and snapshot tooling",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", getEnv("WORKSHOP_CONFIG", ""), "path to a YAML config file")

	cfg := func() string { return configPath }
	root.AddCommand(
		newServeCmd(cfg),
		newMCPCmd(cfg),
		newHistoryCmd(cfg),
		newInspectCmd(cfg),
		newDiffCmd(cfg),
		newVerifyCmd(cfg),
		newReindexCmd(cfg),
		newSeedCmd(cfg),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "workshop %s (commit=%s, date=%s)\n", version, commit, date)
		},
	}
}

func getEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
