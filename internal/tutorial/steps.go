package tutorial

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nickcecere/lvec/internal/client"
	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/tokens"
	"github.com/nickcecere/lvec/internal/ui"
)

// Sample data

var travelPolicies = client.AddRequest{
	IDs: []string{"flight_policy_01", "hotel_policy_01", "rental_car_policy_01", "flight_policy_02"},
	Documents: []string{
		"For domestic flights, employees must book economy class tickets. Business class is only permitted for international flights over 8 hours.",
		"Employees can book hotels up to a maximum of $250 per night in major cities. A list of preferred hotel partners is available.",
		"A mid-size sedan is the standard for car rentals. Upgrades require manager approval. Always select the company's insurance option.",
		"All flights, regardless of destination, must be booked through the official company travel portal, 'Concur'.",
	},
	Metadatas: []client.Metadata{
		{"policy_type": "flights"},
		{"policy_type": "hotels"},
		{"policy_type": "rental_cars"},
		{"policy_type": "flights", "requires_portal": "True"},
	},
}

var policyUpdates = client.AddRequest{
	IDs: []string{"hotel_policy_01", "train_policy_01"},
	Documents: []string{
		"Employees can book hotels up to a maximum of $300 per night. See the portal for preferred partners.",
		"Train travel is encouraged for trips under 4 hours. Business class tickets are approved for all train journeys.",
	},
	Metadatas: []client.Metadata{
		{"policy_type": "hotels", "max_spend": 300},
		{"policy_type": "train", "last_updated": "2025-10-15"},
	},
}

var expensePolicy = client.AddRequest{
	IDs: []string{"expense_policy_01"},
	Documents: []string{
		"All expense reports must be submitted within 15 days of trip completion. " +
			"Reports require manager approval and supporting receipts.",
	},
	Metadatas: []client.Metadata{{"policy_type": "expenses", "days_limit": 15}},
}

// TokenExamples are the sentences counted in step 6.
var TokenExamples = []string{
	"Hello",
	"ChromaDB is awesome!",
	"All expense reports must be submitted within 15 days of trip completion.",
	"For domestic flights, employees must book economy class tickets.",
}

const (
	savedCollection  = "saved_policies"
	remoteCollection = "travel_policies_openai"
)

// step2 creates a transient client and an empty collection.
func (r *Runner) step2(ctx context.Context) error {
	r.banner("STEP 2: CREATING YOUR FIRST COLLECTION")

	c, err := r.ephemeral()
	if err != nil {
		return err
	}
	defer c.Close()
	r.ok("In-memory client initialized")
	r.label("Persistent", c.Persistent())

	col, err := c.GetOrCreateCollection(ctx, config.DefaultCollection)
	if err != nil {
		return err
	}
	r.println()
	r.ok("Collection %s ready", ui.CollectionName.Render(col.Name()))
	r.label("Name", col.Name())
	r.label("ID", col.ID())
	r.label("Embedding function", fmt.Sprintf("%s/%s", col.EmbeddingFunction().Provider(), col.EmbeddingFunction().ModelName()))

	count, err := col.Count(ctx)
	if err != nil {
		return err
	}
	r.printf("\nDocuments in collection: %d\n", count)

	if err := r.printCollections(ctx, c); err != nil {
		return err
	}

	r.println()
	r.note("A collection is a drawer in a filing cabinet: it holds related documents.\nThis client lives in memory, so the drawer disappears when the program ends.")
	return nil
}

// step3 adds, queries, upserts and deletes documents.
func (r *Runner) step3(ctx context.Context) error {
	r.banner("STEP 3: CRUD OPERATIONS ON DOCUMENTS")

	c, err := r.ephemeral()
	if err != nil {
		return err
	}
	defer c.Close()

	col, err := c.GetOrCreateCollection(ctx, config.DefaultCollection)
	if err != nil {
		return err
	}

	r.section(1, "CREATE: adding travel policy documents")
	res, err := col.Add(ctx, travelPolicies)
	if err != nil {
		return err
	}
	r.ok("Added %d travel policy documents", len(res.Added))
	if err := r.printCount(ctx, col, "Total documents in collection"); err != nil {
		return err
	}

	r.section(2, "READ: querying with natural language")
	results, err := col.Query(ctx, client.QueryRequest{
		Texts:    []string{"What is the policy for international flights?"},
		NResults: 2,
	})
	if err != nil {
		return err
	}
	r.printMatches(results[0])
	r.println()
	r.note("Lower distance means more relevant. Search compares meaning vectors, not keywords.")

	results, err = col.Query(ctx, client.QueryRequest{
		Texts:    []string{"Which bookings need the travel portal?"},
		NResults: 2,
		Where:    client.Metadata{"policy_type": "flights"},
	})
	if err != nil {
		return err
	}
	r.println()
	r.note("The same query can be restricted by metadata (policy_type=flights):")
	r.printMatches(results[0])

	r.section(3, "UPDATE: modifying existing documents")
	r.println("Original hotel policy: $250 per night. Updating it to $300 and adding a train policy...")
	if err := col.Upsert(ctx, policyUpdates); err != nil {
		return err
	}
	r.ok("Updated hotel_policy_01 (budget raised to $300)")
	r.ok("Added train_policy_01 (new policy)")
	if err := r.printCount(ctx, col, "Total documents now"); err != nil {
		return err
	}

	docs, err := col.Get(ctx, client.GetRequest{IDs: []string{"hotel_policy_01"}})
	if err != nil {
		return err
	}
	if len(docs) == 1 {
		r.println("\nVerification, stored hotel policy:")
		r.println(ui.DocumentText.Render(docs[0].Content))
		r.println(ui.DocumentText.Render(ui.Dim.Render(formatMetadata(docs[0].Metadata))))
	}

	results, err = col.Query(ctx, client.QueryRequest{Texts: []string{"What is the hotel budget?"}, NResults: 1})
	if err != nil {
		return err
	}
	r.printMatches(results[0])

	r.section(4, "DELETE: removing documents")
	if err := r.printCount(ctx, col, "Documents before deletion"); err != nil {
		return err
	}
	n, err := col.Delete(ctx, "train_policy_01")
	if err != nil {
		return err
	}
	r.ok("Deleted train_policy_01 (%d removed)", n)
	if err := r.printCount(ctx, col, "Documents after deletion"); err != nil {
		return err
	}

	r.println()
	r.note("add() creates, query() reads, upsert() updates or inserts, delete() removes.")
	return nil
}

// step4 writes to a durable directory and shows what lands on disk.
func (r *Runner) step4(ctx context.Context) error {
	r.banner("STEP 4: PERSISTENT DATABASE")

	r.section(1, "Creating a persistent client")
	c, err := r.persistent()
	if err != nil {
		return err
	}
	r.ok("Persistent client created")
	r.label("Storage path", r.dir)

	r.section(2, "Creating a collection with persistent storage")
	col, err := c.GetOrCreateCollection(ctx, savedCollection)
	if err != nil {
		c.Close()
		return err
	}
	r.ok("Collection %s ready", ui.CollectionName.Render(col.Name()))
	r.label("ID", col.ID())

	r.section(3, "Adding the expense policy")
	res, err := col.Add(ctx, expensePolicy)
	if err != nil {
		c.Close()
		return err
	}
	if len(res.Skipped) > 0 {
		r.warn("expense_policy_01 is already stored from an earlier run; nothing to add")
	} else {
		r.ok("Added expense_policy_01")
	}
	if err := r.printCount(ctx, col, "Total documents in persistent collection"); err != nil {
		c.Close()
		return err
	}

	r.section(4, "Verifying the data")
	results, err := col.Query(ctx, client.QueryRequest{Texts: []string{"When must expense reports be submitted?"}, NResults: 1})
	if err != nil {
		c.Close()
		return err
	}
	r.printMatches(results[0])

	// Close before listing so the WAL is checkpointed into the main file
	if err := c.Close(); err != nil {
		return err
	}

	r.section(5, "The data survives restarts")
	reopened, err := r.persistent()
	if err != nil {
		return err
	}
	again, err := reopened.GetCollection(ctx, savedCollection)
	if err != nil {
		reopened.Close()
		return err
	}
	count, err := again.Count(ctx)
	reopened.Close()
	if err != nil {
		return err
	}
	r.ok("Reopened %s: %s still holds %d document(s)", r.dir, savedCollection, count)

	r.section(6, "What is saved to disk")
	return r.printTree(r.dir)
}

// step5 creates, lists, renames and deletes collections.
func (r *Runner) step5(ctx context.Context) error {
	r.banner("STEP 5: MANAGING YOUR COLLECTIONS")

	c, err := r.persistent()
	if err != nil {
		return err
	}
	defer c.Close()
	r.ok("Persistent client initialized at %s", r.dir)

	r.section(1, "CREATE: creating new collections")
	names := []string{"travel_policies", "company_benefits", "employee_handbook"}
	cols := make(map[string]*client.Collection, len(names))
	for _, name := range names {
		col, err := c.GetOrCreateCollection(ctx, name)
		if err != nil {
			return err
		}
		cols[name] = col
		r.ok("Created %s", ui.CollectionName.Render(name))
	}

	r.section(2, "READ: listing all collections")
	infos, err := c.ListCollections(ctx)
	if err != nil {
		return err
	}
	r.printf("\nTotal collections: %d\n", len(infos))
	for i, info := range infos {
		r.printf("\n   %d. %s\n", i+1, ui.CollectionName.Render(info.Name))
		r.label("ID", info.ID)
		r.label("Documents", info.Count)
	}

	r.println()
	if _, err := cols["travel_policies"].Add(ctx, client.AddRequest{
		IDs:       []string{"policy_001"},
		Documents: []string{"Employees must use economy class for flights under 6 hours."},
	}); err != nil {
		return err
	}
	r.ok("Added a document to travel_policies")
	if _, err := cols["company_benefits"].Add(ctx, client.AddRequest{
		IDs:       []string{"benefit_001"},
		Documents: []string{"Health insurance covers 80% of medical expenses."},
	}); err != nil {
		return err
	}
	r.ok("Added a document to company_benefits")

	r.section(3, "UPDATE: renaming a collection")
	handbook, err := c.GetCollection(ctx, "employee_handbook")
	if err != nil {
		return err
	}
	newName := "employee_guidelines"
	err = handbook.Modify(ctx, client.ModifyRequest{Name: &newName})
	if errors.Is(err, client.ErrCollectionExists) {
		r.warn("%s exists from an earlier run; replacing it", newName)
		if err := c.DeleteCollection(ctx, newName); err != nil {
			return err
		}
		err = handbook.Modify(ctx, client.ModifyRequest{Name: &newName})
	}
	if err != nil {
		return err
	}
	r.ok("employee_handbook renamed to %s", ui.CollectionName.Render(handbook.Name()))
	if err := r.printCollections(ctx, c); err != nil {
		return err
	}

	r.section(4, "DELETE: removing a collection")
	r.warn("Deleting a collection removes ALL of its documents. This cannot be undone.")
	if err := c.DeleteCollection(ctx, "travel_policies"); err != nil {
		return err
	}
	r.ok("Deleted travel_policies")
	if err := r.printCollections(ctx, c); err != nil {
		return err
	}

	r.section(5, "Getting a collection by name")
	benefits, err := c.GetCollection(ctx, "company_benefits")
	if err != nil {
		return err
	}
	r.label("Collection", benefits.Name())
	r.label("ID", benefits.ID())
	if err := r.printCount(ctx, benefits, "Document count"); err != nil {
		return err
	}
	results, err := benefits.Query(ctx, client.QueryRequest{Texts: []string{"What insurance coverage is available?"}, NResults: 1})
	if err != nil {
		return err
	}
	r.printMatches(results[0])
	return nil
}

// step6 counts tokens, estimates cost and, with an API key, builds a
// collection backed by the remote embedding model.
func (r *Runner) step6(ctx context.Context) error {
	r.banner("STEP 6: REMOTE EMBEDDINGS AND TOKEN COUNTING")
	model := r.cfg.Embeddings.OpenAI.Model
	if model == "" {
		model = config.DefaultOpenAIEmbedModel
	}

	r.section(1, "API key")
	hasKey := r.cfg.Embeddings.OpenAI.APIKey != ""
	if hasKey {
		r.ok("OpenAI API key found")
	} else {
		r.warn("OpenAI API key not found")
		r.note("Set it in the environment to run the remote part of this step:\n   export OPENAI_API_KEY='your-key-here'\nor put it in the config file under embeddings.openai.api_key.")
	}

	r.section(2, "Counting tokens")
	r.printf("%s uses the %s encoding\n\n", model, r.counter.Encoding())
	summary := r.counter.Summarize(model, TokenExamples)
	for _, c := range summary.Counts {
		r.printf("Text: %q\n", c.Text)
		r.printf("Tokens: %d\n\n", c.Tokens)
	}
	r.printf("Total tokens across all examples: %d\n", summary.Total)
	if price, ok := tokens.PricePerMillion(model); ok {
		r.printf("Estimate: %d tokens ≈ %s\n", summary.Total, ui.FormatCost(summary.Cost))
		r.println(ui.Dim.Render(fmt.Sprintf("   (at $%.2f per 1M tokens for %s)", price, model)))
	} else {
		r.warn("No price known for %s", model)
	}

	r.section(3, "A collection with remote embeddings")
	r.printf("%s\n", codeExample)

	if hasKey {
		if err := r.remoteCollection(ctx); err != nil {
			return err
		}
	}

	r.section(4, "Local vs remote embeddings")
	r.note(comparison)
	return nil
}

func (r *Runner) remoteCollection(ctx context.Context) error {
	remote, err := r.remote()
	if err != nil {
		return err
	}

	c, err := r.persistent()
	if err != nil {
		return err
	}
	defer c.Close()

	col, err := c.GetOrCreateCollection(ctx, remoteCollection, client.WithEmbeddingFunction(remote))
	if err != nil {
		return err
	}
	if err := col.Upsert(ctx, client.AddRequest{
		IDs:       travelPolicies.IDs,
		Documents: travelPolicies.Documents,
		Metadatas: travelPolicies.Metadatas,
	}); err != nil {
		return err
	}
	r.ok("Stored %d policies in %s using %s", len(travelPolicies.IDs), ui.CollectionName.Render(col.Name()), remote.ModelName())

	results, err := col.Query(ctx, client.QueryRequest{Texts: []string{"What is the policy for international flights?"}, NResults: 2})
	if err != nil {
		return err
	}
	r.printMatches(results[0])
	return nil
}

func (r *Runner) printCount(ctx context.Context, col *client.Collection, label string) error {
	n, err := col.Count(ctx)
	if err != nil {
		return err
	}
	r.printf("%s: %d\n", label, n)
	return nil
}

// printTree lists the files under dir in walk order.
func (r *Runner) printTree(dir string) error {
	var lines []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(os.PathSeparator))
		name := d.Name()
		if d.IsDir() {
			name += "/"
		}
		lines = append(lines, strings.Repeat("  ", depth+1)+name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	r.printf("\n%s/\n", filepath.Clean(dir))
	for _, l := range lines {
		r.println(l)
	}
	return nil
}

const codeExample = `
  remote, err := embeddings.NewOpenAIService(os.Getenv("OPENAI_API_KEY"), "text-embedding-3-small", "", 0)

  c, err := client.NewPersistent("./lvec_db")
  col, err := c.GetOrCreateCollection(ctx, "travel_policies_openai",
      client.WithEmbeddingFunction(remote))

  // Embedding happens on every add, upsert and query
  _, err = col.Add(ctx, client.AddRequest{
      IDs:       []string{"policy_001"},
      Documents: []string{"Policy text here..."},
  })
`

const comparison = `LOCAL (hash-384, the default):
  - no network calls and no cost
  - deterministic, matches shared words and word fragments
  - good for learning, prototypes and tests

REMOTE (text-embedding-3-small):
  - requires an API key
  - understands meaning beyond shared words
  - $0.02 per 1M tokens
  - better for production search

A collection remembers which function built it. Reopening it with a
different function is refused, so vectors are never mixed.`
