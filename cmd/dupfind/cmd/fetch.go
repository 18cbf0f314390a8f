package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/dupfind/internal/remote"
	"github.com/aweris/dupfind/internal/render"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <ref>",
	Short: "Fetch a published report",
	Long:  "Pull a report pushed with 'find --publish' from an OCI registry and print it.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().Bool("json", false, "print the raw JSON report")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ref := args[0]

	r, err := remote.NewOCIRemote(ref, registryAuth())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Fetching %s...\n", ref)

	report, err := r.Pull(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		_, err := cmd.OutOrStdout().Write(report.Data)
		return err
	}

	var groups [][]string
	if err := json.Unmarshal(report.Data, &groups); err != nil {
		return fmt.Errorf("parse report: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Strategy: %s, root: %s, sets: %s\n",
		report.Labels[remote.LabelStrategy], report.Labels[remote.LabelRoot], report.Labels[remote.LabelSets])

	return render.TextGroups(cmd.OutOrStdout(), groups, render.Options{
		FullPaths: true,
		Color:     isTerminal(cmd.OutOrStdout()),
	})
}
