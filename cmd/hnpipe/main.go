package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	deployment string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hnpipe",
		Short:         "Load Hacker News items, comments and stories into a SQL warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().StringVar(&deployment, "deployment", "", "deployment to target (default: from config or HNPIPE_DEPLOYMENT)")

	root.AddCommand(materializeCmd())
	root.AddCommand(assetsCmd())
	root.AddCommand(showCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func materializeCmd() *cobra.Command {
	var (
		selection string
		count     int
		stub      bool
	)

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Fetch items and write the selected tables once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaterialize(cmd.Context(), selection, count, stub)
		},
	}

	cmd.Flags().StringVar(&selection, "select", "", "comma separated assets to materialize (default: all)")
	cmd.Flags().IntVar(&count, "count", 0, "number of most recent items to fetch (default: from config)")
	cmd.Flags().BoolVar(&stub, "stub", false, "use the built-in stub source instead of the live API")
	return cmd
}

func assetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "List assets and their dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssets()
		},
	}
}

func showCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "show TABLE",
		Short: "Print a materialized table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), args[0], jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows to print")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, false)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, true)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
