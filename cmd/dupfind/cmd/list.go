package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/aweris/dupfind/internal/walk"
)

var listCmd = &cobra.Command{
	Use:   "list <path>",
	Short: "List candidate files",
	Long:  "List the regular files 'find' would fingerprint, without reading them.",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	recursive, _ := cmd.Flags().GetBool("recursive")

	files, err := walk.Files(afero.NewOsFs(), args[0], recursive, newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}

	if len(files) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "(no files)")
	}

	return nil
}
