package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatvault",
		Short: "Ingest Discord chat exports into a normalized SQLite database",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./chatvault.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(combineCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(serveCmd())

	return root
}

func ingestCmd() *cobra.Command {
	var appendTo bool

	cmd := &cobra.Command{
		Use:   "ingest <export.json> [output.db]",
		Short: "Load one chat export into a SQLite database",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(args, appendTo)
		},
	}

	cmd.Flags().BoolVar(&appendTo, "append", false,
		"load into an existing database instead of recreating it (re-loading a document duplicates its embeds, inline emojis and reactions)")
	return cmd
}

func combineCmd() *cobra.Command {
	var (
		output      string
		deleteEmpty bool
		noRecursive bool
	)

	cmd := &cobra.Command{
		Use:   "combine [dir]",
		Short: "Join a directory of chat exports into one aggregate file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCombine(args, output, deleteEmpty, noRecursive)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "path for the combined JSON output")
	cmd.Flags().BoolVar(&deleteEmpty, "delete-empty", false, "delete JSON files that do not contain any messages")
	cmd.Flags().BoolVar(&noRecursive, "no-recursive", false, "only scan the top-level directory for JSON files")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [db]",
		Short: "Show row counts for an ingested database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(args)
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve [db]",
		Short: "Serve the read API over an ingested database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(args, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
