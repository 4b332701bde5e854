// Package main provides the netgraph CLI entry point.
//
// netgraph loads graphs from pairwise text files and reports their connected
// components, either once or continuously while the files change.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "netgraph",
		Short: "netgraph - incremental connected components for pairwise graphs",
		Long: `netgraph loads graphs from pairwise text files and keeps track of
their connected components.

Input format, one edge per line:
  source target [weight]    // comments run to the end of the line
  "quoted name" other       // double quotes allow spaces in names`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Do not use the parse cache")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "netgraph v%s (%s)\n", version, commit)
		},
	})

	// Components command
	componentsCmd := &cobra.Command{
		Use:   "components [files...]",
		Short: "Load files and list their connected components",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runComponents,
	}
	componentsCmd.Flags().Int("limit", 20, "Maximum number of components to list (0 for all)")
	componentsCmd.Flags().Bool("names", false, "Print the node names of each component")
	rootCmd.AddCommand(componentsCmd)

	// Contract command
	contractCmd := &cobra.Command{
		Use:   "contract [files...]",
		Short: "Contract heavy edges and report the resulting components",
		Long: `Loads the files, then contracts every edge whose weight is at least
--min-weight, merging its endpoints into a single node.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runContract,
	}
	contractCmd.Flags().Float64("min-weight", 1, "Contract edges with at least this weight")
	rootCmd.AddCommand(contractCmd)

	// Watch command
	watchCmd := &cobra.Command{
		Use:   "watch [files...]",
		Short: "Reload files as they change and print component events",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWatch,
	}
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.AddCommand(watchCmd)

	// Cache commands
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Parse cache operations",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show parse cache statistics",
		RunE:  runCacheStats,
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached parse",
		RunE:  runCacheClear,
	})
	rootCmd.AddCommand(cacheCmd)

	return rootCmd
}
