package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickcecere/lvec/internal/client"
	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/embeddings"
	"github.com/nickcecere/lvec/internal/ui"
)

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"collections", "col"},
		Short:   "Create, list, rename and delete collections",
	}
	cmd.AddCommand(
		newCollectionCreateCmd(),
		newCollectionListCmd(),
		newCollectionGetCmd(),
		newCollectionRenameCmd(),
		newCollectionDeleteCmd(),
	)
	return cmd
}

func newCollectionCreateCmd() *cobra.Command {
	var (
		provider string
		model    string
		meta     []string
		getOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Long: `Create a collection bound to an embedding function.

The function defaults to the configured provider. It is stored with the
collection and used for every later add, upsert and query.

Examples:
  lvec collection create travel_policies
  lvec collection create travel_policies_openai --provider openai
  lvec collection create notes --provider local --model hash-128 --meta team=travel`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()

			md, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			emb, err := embedderFor(cfg, provider, model)
			if err != nil {
				return err
			}

			c, err := openClient(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			opts := []client.CollectionOption{client.WithMetadata(md)}
			if emb != nil {
				opts = append(opts, client.WithEmbeddingFunction(emb))
			}

			var col *client.Collection
			if getOnly {
				col, err = c.GetOrCreateCollection(ctx, args[0], opts...)
			} else {
				col, err = c.CreateCollection(ctx, args[0], opts...)
			}
			if err != nil {
				return err
			}

			fn := col.EmbeddingFunction()
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Render(fmt.Sprintf("✓ Collection %s ready", col.Name())))
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", ui.Label("ID", col.ID()))
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", ui.Label("Embedding", fmt.Sprintf("%s/%s (%d dims)", fn.Provider(), fn.ModelName(), fn.Dimensions())))
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "embedding provider (local, ollama, openai)")
	cmd.Flags().StringVar(&model, "model", "", "embedding model for the provider")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "collection metadata as key=value (repeatable)")
	cmd.Flags().BoolVar(&getOnly, "get-or-create", false, "return the collection if it already exists")
	return cmd
}

// embedderFor builds the embedding function requested on the command line.
// It returns nil when neither provider nor model is given.
func embedderFor(cfg *config.Config, provider, model string) (embeddings.Service, error) {
	if provider == "" && model == "" {
		return nil, nil
	}
	if provider == "" {
		provider = cfg.Embeddings.Provider
	}
	if model != "" {
		return embeddings.NewServiceForCollection(provider, model, cfg)
	}

	override := *cfg
	override.Embeddings.Provider = provider
	emb, err := embeddings.NewService(&override)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}
	return emb, nil
}

func newCollectionListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List collections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(config.Get())
			if err != nil {
				return err
			}
			defer c.Close()

			infos, err := c.ListCollections(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(out, "No collections found.")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Run 'lvec collection create <name>' to create one.")
				return nil
			}

			fmt.Fprintln(out, ui.Header.Render(fmt.Sprintf("Collections (%d)", len(infos))))
			fmt.Fprintln(out)
			for _, info := range infos {
				printCollectionInfo(out, info)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newCollectionGetCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Show one collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(config.Get())
			if err != nil {
				return err
			}
			defer c.Close()

			col, err := c.GetCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			info, err := col.Info(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			printCollectionInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newCollectionRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(config.Get())
			if err != nil {
				return err
			}
			defer c.Close()

			col, err := c.GetCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			newName := args[1]
			if err := col.Modify(cmd.Context(), client.ModifyRequest{Name: &newName}); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Render(fmt.Sprintf("✓ Renamed %s to %s", args[0], newName)))
			return nil
		},
	}
}

func newCollectionDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection and all of its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			c, err := openClient(config.Get())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			if _, err := c.GetCollection(ctx, name); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !yes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete collection '%s'? This removes all of its documents. [y/N]: ", name)) {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}

			if err := c.DeleteCollection(ctx, name); err != nil {
				return err
			}
			fmt.Fprintln(out, ui.Success.Render(fmt.Sprintf("✓ Collection '%s' deleted.", name)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func printCollectionInfo(out io.Writer, info client.CollectionInfo) {
	fmt.Fprintln(out, ui.CollectionName.Render(info.Name))
	fmt.Fprintf(out, "  %s\n", ui.Label("ID", info.ID))
	fmt.Fprintf(out, "  %s\n", ui.Label("Documents", info.Count))
	embedding := info.Provider + "/" + info.Model
	if info.Dimensions > 0 {
		embedding += fmt.Sprintf(" (%d dims)", info.Dimensions)
	}
	fmt.Fprintf(out, "  %s\n", ui.Label("Embedding", embedding))
	if len(info.Metadata) > 0 {
		fmt.Fprintf(out, "  %s\n", ui.Label("Metadata", formatMetadata(info.Metadata)))
	}
	fmt.Fprintf(out, "  %s\n", ui.Label("Created", formatTime(info.CreatedAt)))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// lookupCollection opens the client and the named collection. The caller closes the client.
func lookupCollection(ctx context.Context, name string) (*client.Client, *client.Collection, error) {
	c, err := openClient(config.Get())
	if err != nil {
		return nil, nil, err
	}
	col, err := c.GetCollection(ctx, name)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, col, nil
}
