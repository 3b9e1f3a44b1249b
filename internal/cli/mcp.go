package cli

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/importer"
	"github.com/nickcecere/lvec/internal/mcp"
	"github.com/nickcecere/lvec/internal/tokens"
	"github.com/nickcecere/lvec/internal/watcher"
)

func newMcpCmd() *cobra.Command {
	var (
		watchDir        string
		watchCollection string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server for integration with AI agents.

The server communicates via stdin/stdout using JSON-RPC 2.0 and provides tools for:
  - lvec_list_collections: List collections with document counts
  - lvec_query: Query a collection in natural language
  - lvec_add: Add or upsert documents
  - lvec_count_tokens: Count tokens and estimate embedding cost

With --watch, a background watcher keeps a directory imported into a
collection while the server runs.

This command is typically invoked by an agent and not run directly by users.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// MCP server uses stdin/stdout for communication, so logs go to stderr
			log.SetOutput(os.Stderr)

			cfg := config.Get()

			ctx, cancel := signalContext(cmd.Context(), func(sig os.Signal) {
				log.Info("Received signal, shutting down", "signal", sig)
			})
			defer cancel()

			c, err := openClient(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			counter, err := tokens.NewCounter(cfg.Tokens.Encoding)
			if err != nil {
				return err
			}

			if watchDir != "" {
				absPath, err := resolveDir([]string{watchDir})
				if err != nil {
					return err
				}
				name, err := importer.CollectionName(watchCollection, absPath)
				if err != nil {
					return err
				}
				go startBackgroundWatcher(ctx, importer.New(c, cfg), cfg, absPath, name)
			}

			mcp.ServerVersion = version
			server := mcp.NewServer(c, counter, cfg, mcp.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()))
			if err := server.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&watchDir, "watch", "", "directory to keep imported while serving")
	cmd.Flags().StringVar(&watchCollection, "collection", "", "collection for --watch (defaults to directory name)")
	return cmd
}

// startBackgroundWatcher imports root and then watches it until ctx is cancelled.
func startBackgroundWatcher(ctx context.Context, im *importer.Importer, cfg *config.Config, root, collection string) {
	// Wait a bit before starting to let the MCP server initialize
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
	}

	p, err := im.Import(ctx, importer.Options{Collection: collection, Path: root, Prune: true})
	if err != nil {
		if ctx.Err() == nil {
			log.Error("Background import failed", "error", err)
		}
		return
	}
	log.Info("Starting background file watcher", "path", root, "collection", collection, "files", p.TotalFiles)

	w, err := watcher.New(
		root,
		collection,
		im,
		cfg,
		watcher.WithDebounceTime(1*time.Second),
		watcher.WithEventCallback(func(event, path string) {
			log.Debug("Background watcher event", "event", event, "path", path)
		}),
	)
	if err != nil {
		log.Error("Failed to create watcher", "error", err)
		return
	}

	// Start watching (blocks until context is cancelled)
	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		log.Error("Watcher error", "error", err)
	}
}
