package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/mtreex/cmd/mtreex/tui"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

var browseCmd = &cobra.Command{
	Use:   "browse FILE",
	Short: "Explore a manifest interactively",
	Long: `Open the manifest FILE in an interactive tree browser.

Keys:
  up/down, j/k     move
  enter, right     expand or collapse a directory
  left             collapse, or jump to the parent
  space            mark an entry
  e / c            expand or collapse everything
  w                show parser warnings and unknown keywords
  q                quit and print the marked paths
  ctrl+c           quit without printing`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().Bool("strict", false, "fail when two entries resolve to the same path")
	browseCmd.Flags().Bool("unescape-names", false, "decode \\ooo escapes in entry names")
	rootCmd.AddCommand(browseCmd)
}

// runBrowse is the browse command handler.
func runBrowse(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"strict":         "strict",
		"unescape-names": "unescape_names",
	}); err != nil {
		return err
	}

	source := args[0]
	marked, err := tui.Run(tui.Options{
		Source: source,
		Load: func() (*mtree.Document, error) {
			text, err := readManifest(cmd.InOrStdin(), source)
			if err != nil {
				return nil, err
			}
			return parseManifest(text)
		},
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range marked {
		fmt.Fprintln(out, p)
	}
	return nil
}
