package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/importer"
	"github.com/nickcecere/lvec/internal/ui"
	"github.com/nickcecere/lvec/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		collection string
		noInitial  bool
		debounce   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a directory and keep its collection current",
		Long: `Watch a directory for file changes and re-import modified files.

This command first imports the directory (unless --no-initial is specified),
then applies changes as they happen. Deleted files have their documents
removed.

Examples:
  # Watch current directory
  lvec watch

  # Watch a specific directory into a named collection
  lvec watch ./handbook --collection handbook

  # Skip initial import (assumes already imported)
  lvec watch --no-initial`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := resolveDir(args)
			if err != nil {
				return err
			}

			cfg := config.Get()
			if cfg.IsEphemeral() {
				log.Warn("Watching into an in-memory store; nothing is kept after exit")
			}

			name, err := importer.CollectionName(collection, absPath)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context(), func(os.Signal) {
				fmt.Println("\nShutting down...")
			})
			defer cancel()

			c, err := openClient(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			im := importer.New(c, cfg)
			out := cmd.OutOrStdout()

			if !noInitial {
				fmt.Fprintln(out, ui.Header.Render("Initial Import"))
				fmt.Fprintf(out, "Path: %s\n\n", absPath)

				p, err := im.Import(ctx, importer.Options{
					Collection: name,
					Path:       absPath,
					Prune:      true,
				})
				if err != nil {
					if ctx.Err() != nil {
						return nil // User cancelled
					}
					return fmt.Errorf("initial import failed: %w", err)
				}
				fmt.Fprintf(out, "Initial import complete: %d files, %d chunks\n\n", p.TotalFiles, p.TotalChunks)
			}

			w, err := watcher.New(
				absPath,
				name,
				im,
				cfg,
				watcher.WithDebounceTime(debounce),
				watcher.WithEventCallback(func(event, path string) {
					fmt.Fprintf(out, "%s %s %s\n", ui.Dim.Render(time.Now().Format("15:04:05")), event, path)
				}),
			)
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}

			fmt.Fprintln(out, ui.Header.Render("Watching for Changes"))
			fmt.Fprintf(out, "Directory:  %s\n", absPath)
			fmt.Fprintf(out, "Collection: %s\n", name)
			fmt.Fprintln(out, "Press Ctrl+C to stop.")
			fmt.Fprintln(out)

			if err := w.Start(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name (defaults to directory name)")
	cmd.Flags().BoolVar(&noInitial, "no-initial", false, "skip the initial import")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "how long to batch file events")
	return cmd
}
