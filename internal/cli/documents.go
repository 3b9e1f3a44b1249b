package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lvec/internal/client"
	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/ui"
)

// newAddCmd builds the add command, or upsert when upsert is true.
func newAddCmd(upsert bool) *cobra.Command {
	var (
		ids  []string
		docs []string
		meta []string
	)

	use, short := "add", "Add documents to a collection"
	if upsert {
		use, short = "upsert", "Insert or replace documents in a collection"
	}

	cmd := &cobra.Command{
		Use:   use + " <collection>",
		Short: short,
		Long: short + `.

--id and --doc are repeatable and paired in order. Metadata given with
--meta applies to every document in the call. The collection is created
when it does not exist.

Examples:
  lvec ` + use + ` travel_policies --id flight_policy_01 \
    --doc "For domestic flights, employees must book economy class tickets." \
    --meta policy_type=flights`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			req := client.AddRequest{IDs: ids, Documents: docs}
			if md != nil {
				req.Metadatas = make([]client.Metadata, len(ids))
				for i := range req.Metadatas {
					req.Metadatas[i] = md
				}
			}

			c, err := openClient(config.Get())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			col, err := c.GetOrCreateCollection(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if upsert {
				if err := col.Upsert(ctx, req); err != nil {
					return err
				}
				fmt.Fprintln(out, ui.Success.Render(fmt.Sprintf("✓ Upserted %d document(s) into %s", len(ids), col.Name())))
			} else {
				res, err := col.Add(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, ui.Success.Render(fmt.Sprintf("✓ Added %d document(s) to %s", len(res.Added), col.Name())))
				if len(res.Skipped) > 0 {
					fmt.Fprintln(out, ui.Warning.Render("! Skipped existing IDs: "+strings.Join(res.Skipped, ", ")))
				}
			}

			count, err := col.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s\n", ui.Label("Documents", count))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&ids, "id", nil, "document ID (repeatable)")
	cmd.Flags().StringArrayVar(&docs, "doc", nil, "document text (repeatable)")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "metadata as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newGetCmd() *cobra.Command {
	var (
		ids     []string
		where   []string
		limit   int
		offset  int
		asJSON  bool
		vectors bool
	)

	cmd := &cobra.Command{
		Use:   "get <collection>",
		Short: "Fetch documents by ID or metadata",
		Long: `Fetch documents by ID and/or metadata equality.

Without --id or --where every document is returned in insertion order.

Examples:
  lvec get travel_policies --id hotel_policy_01
  lvec get travel_policies --where policy_type=flights --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseMetadata(where)
			if err != nil {
				return err
			}

			c, col, err := lookupCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			docs, err := col.Get(cmd.Context(), client.GetRequest{
				IDs:               ids,
				Where:             filter,
				Limit:             limit,
				Offset:            offset,
				IncludeEmbeddings: vectors,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), docs)
			}
			printDocuments(cmd.OutOrStdout(), docs)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&ids, "id", nil, "document ID (repeatable)")
	cmd.Flags().StringArrayVar(&where, "where", nil, "metadata filter as key=value (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of documents (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of documents to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&vectors, "embeddings", false, "include embeddings in JSON output")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var (
		ids   []string
		where []string
	)

	cmd := &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete documents by ID or metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseMetadata(where)
			if err != nil {
				return err
			}
			if len(ids) == 0 && filter == nil {
				return fmt.Errorf("--id or --where is required")
			}

			c, col, err := lookupCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			removed := 0
			if len(ids) > 0 {
				n, err := col.Delete(ctx, ids...)
				if err != nil {
					return err
				}
				removed += n
			}
			if filter != nil {
				n, err := col.DeleteWhere(ctx, filter)
				if err != nil {
					return err
				}
				removed += n
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Success.Render(fmt.Sprintf("✓ Deleted %d document(s) from %s", removed, col.Name())))
			count, err := col.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s\n", ui.Label("Documents", count))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&ids, "id", nil, "document ID (repeatable)")
	cmd.Flags().StringArrayVar(&where, "where", nil, "metadata filter as key=value (repeatable)")
	return cmd
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count <collection>",
		Short: "Count the documents in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, col, err := lookupCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := col.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newPeekCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "peek <collection>",
		Short: "Show the first documents of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, col, err := lookupCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			docs, err := col.Peek(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printDocuments(cmd.OutOrStdout(), docs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", client.DefaultPeekLimit, "number of documents")
	return cmd
}

func printDocuments(out io.Writer, docs []client.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(out, ui.Dim.Render("(no documents)"))
		return
	}

	for i, d := range docs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, ui.DocumentID.Render(d.ID))
		fmt.Fprintln(out, ui.DocumentText.Render(d.Content))
		if len(d.Metadata) > 0 {
			fmt.Fprint(out, indent(ui.HighlightJSON(d.Metadata), "    "))
		}
	}
	log.Debug("Printed documents", "count", len(docs))
}

func indent(text, prefix string) string {
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString(prefix)
		b.WriteString(l)
	}
	if !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(md client.Metadata) string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, md[k])
	}
	return strings.Join(parts, " ")
}
