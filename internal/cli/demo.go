package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/tutorial"
	"github.com/nickcecere/lvec/internal/ui"
)

func newDemoCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "demo [step]",
		Short: "Run the travel policies walkthrough",
		Long: `Run the walkthrough, either one step or all of them in order.

Steps:
  2  Creating your first collection (in memory)
  3  Adding, querying, updating and deleting documents
  4  Saving a collection to disk
  5  Creating, listing, renaming and deleting collections
  6  Remote embeddings and token counting

Steps 4 to 6 write to --dir, which is separate from the main store.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"2", "3", "4", "5", "6"},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := tutorial.NewRunner(cmd.OutOrStdout(), config.Get(), tutorial.WithDir(dir))
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context(), nil)
			defer cancel()

			if len(args) == 0 {
				return r.RunAll(ctx)
			}
			step, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step %q: %w", args[0], err)
			}
			return r.Run(ctx, step)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", tutorial.DefaultDir, "directory for the durable steps")
	return cmd
}

func newGuideCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "guide",
		Short: "Show the tutorial guide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if raw {
				fmt.Fprint(out, tutorial.Guide())
				return nil
			}

			rendered, err := tutorial.RenderGuide()
			if err != nil {
				fmt.Fprintln(os.Stderr, ui.Warning.Render("Failed to render guide: "+err.Error()))
				fmt.Fprint(out, tutorial.Guide())
				return nil
			}
			fmt.Fprint(out, rendered)
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print the Markdown source")
	return cmd
}
