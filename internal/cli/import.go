package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/importer"
	"github.com/nickcecere/lvec/internal/ui"
)

func newImportCmd() *cobra.Command {
	var (
		collection string
		extensions []string
		ignore     []string
		force      bool
		prune      bool
	)

	cmd := &cobra.Command{
		Use:   "import [path]",
		Short: "Import a directory of text files into a collection",
		Long: `Import text files from a directory (or the current directory) as chunked
documents.

This command will:
1. Discover text files, honoring .gitignore and the ignore patterns
2. Split each file into line-aligned chunks
3. Embed the chunks with the collection's embedding function
4. Store them with source, line range and content hash metadata

Files whose content hash is unchanged since the last import are skipped.

Examples:
  # Import ./handbook into the "handbook" collection
  lvec import ./handbook

  # Choose the collection and only take Markdown
  lvec import ./handbook --collection policies --ext .md

  # Re-import everything and drop documents of deleted files
  lvec import ./handbook --force --prune`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := resolveDir(args)
			if err != nil {
				return err
			}

			cfg := config.Get()
			name, err := importer.CollectionName(collection, absPath)
			if err != nil {
				return err
			}

			log.Debug("Starting import",
				"path", absPath,
				"collection", name,
				"force", force,
				"prune", prune,
			)

			ctx, cancel := signalContext(cmd.Context(), func(os.Signal) {
				fmt.Println("\nInterrupted, cleaning up...")
			})
			defer cancel()

			c, err := openClient(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Header.Render("Importing into "+name))
			fmt.Fprintf(out, "Path: %s\n\n", absPath)

			lastUpdate := time.Now()
			im := importer.New(c, cfg)
			p, err := im.Import(ctx, importer.Options{
				Collection:     name,
				Path:           absPath,
				Extensions:     extensions,
				IgnorePatterns: ignore,
				Force:          force,
				Prune:          prune,
				OnProgress: func(p importer.Progress) {
					// Throttle updates to every 100ms
					if time.Since(lastUpdate) < 100*time.Millisecond {
						return
					}
					lastUpdate = time.Now()

					done := p.ImportedFiles + p.SkippedFiles + p.Errors
					if p.TotalFiles > 0 {
						pct := float64(done) / float64(p.TotalFiles) * 100
						fmt.Fprintf(os.Stderr, "\r\033[KProgress: %d/%d files (%.0f%%) | Chunks: %d | %s",
							done, p.TotalFiles, pct, p.TotalChunks, truncatePath(p.CurrentFile, 40))
					}
				},
			})

			// Clear progress line
			fmt.Fprint(os.Stderr, "\r\033[K")

			if err != nil {
				if ctx.Err() != nil {
					fmt.Fprintln(out, ui.Warning.Render("Import cancelled"))
					return nil
				}
				return fmt.Errorf("import failed: %w", err)
			}

			printImportSummary(cmd, p)
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name (defaults to directory name)")
	cmd.Flags().StringSliceVarP(&extensions, "ext", "e", nil, "file extensions to include (e.g., .md, .txt)")
	cmd.Flags().StringSliceVarP(&ignore, "ignore", "i", nil, "additional patterns to ignore")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-import files even when unchanged")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete documents whose source file is gone")
	return cmd
}

func printImportSummary(cmd *cobra.Command, p importer.Progress) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.Success.Render("Import complete!"))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Files:     %d\n", p.TotalFiles)
	fmt.Fprintf(out, "  Imported:  %d\n", p.ImportedFiles)
	fmt.Fprintf(out, "  Unchanged: %d\n", p.SkippedFiles)
	if p.RemovedFiles > 0 {
		fmt.Fprintf(out, "  Removed:   %d\n", p.RemovedFiles)
	}
	if p.Errors > 0 {
		fmt.Fprintf(out, "  Errors:    %d\n", p.Errors)
	}
	fmt.Fprintf(out, "  Chunks:    %d\n", p.TotalChunks)
	fmt.Fprintf(out, "  Duration:  %s\n", time.Since(p.StartTime).Round(time.Millisecond))
}

// resolveDir returns the absolute directory named by args, or the working directory.
func resolveDir(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("path does not exist: %s", absPath)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", absPath)
	}
	return absPath, nil
}
