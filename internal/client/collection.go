package client

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/lvec/internal/embeddings"
	"github.com/nickcecere/lvec/internal/store"
)

// DefaultNResults is used when a query does not ask for a result count.
const DefaultNResults = 10

// DefaultPeekLimit is the number of records Peek returns by default.
const DefaultPeekLimit = 10

// Collection is a handle on one named collection.
type Collection struct {
	client   *Client
	record   store.CollectionRecord
	embedder embeddings.Service
}

// AddRequest carries parallel slices of IDs, documents and optional metadata.
type AddRequest struct {
	IDs       []string
	Documents []string
	Metadatas []Metadata
}

// AddResult reports which IDs were written and which already existed.
type AddResult struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped,omitempty"`
}

// QueryRequest asks for the nearest documents to each text.
type QueryRequest struct {
	Texts    []string
	NResults int
	Where    Metadata
}

// Match is one query hit.
type Match struct {
	ID       string   `json:"id"`
	Document string   `json:"document"`
	Metadata Metadata `json:"metadata,omitempty"`
	Distance float64  `json:"distance"`
}

// QueryResult groups the matches for one query text, nearest first.
type QueryResult struct {
	Query   string  `json:"query"`
	Matches []Match `json:"matches"`
}

// GetRequest selects records by ID and/or metadata.
type GetRequest struct {
	IDs               []string
	Where             Metadata
	Limit             int
	Offset            int
	IncludeEmbeddings bool
}

// ModifyRequest renames a collection and/or replaces its metadata.
type ModifyRequest struct {
	Name     *string
	Metadata Metadata
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.record.Name }

// ID returns the collection UUID.
func (c *Collection) ID() string { return c.record.UUID }

// Metadata returns the collection metadata.
func (c *Collection) Metadata() Metadata { return c.record.Metadata }

// CreatedAt returns when the collection was created.
func (c *Collection) CreatedAt() time.Time { return c.record.CreatedAt }

// EmbeddingFunction returns the function bound to this collection.
func (c *Collection) EmbeddingFunction() embeddings.Service { return c.embedder }

// Info returns a listing summary with a fresh record count.
func (c *Collection) Info(ctx context.Context) (CollectionInfo, error) {
	info := collectionInfo(&c.record)
	count, err := c.Count(ctx)
	if err != nil {
		return info, err
	}
	info.Count = count
	return info, nil
}

// Add inserts new records. IDs that already exist are skipped with a warning
// and listed in the result; their stored content is left untouched.
func (c *Collection) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	if err := validateAdd(req); err != nil {
		return nil, err
	}

	existing, err := c.client.store.ExistingIDs(ctx, c.record.ID, req.IDs)
	if err != nil {
		return nil, err
	}

	result := &AddResult{}
	var pending AddRequest
	for i, id := range req.IDs {
		if existing[id] {
			log.Warn("Add of existing document ID, skipping", "collection", c.record.Name, "id", id)
			result.Skipped = append(result.Skipped, id)
			continue
		}
		pending.IDs = append(pending.IDs, id)
		pending.Documents = append(pending.Documents, req.Documents[i])
		pending.Metadatas = append(pending.Metadatas, metadataAt(req.Metadatas, i))
	}

	if len(pending.IDs) == 0 {
		return result, nil
	}

	docs, err := c.embed(ctx, pending)
	if err != nil {
		return nil, err
	}

	skipped, err := c.client.store.InsertDocuments(ctx, c.record.ID, docs)
	if err != nil {
		return nil, err
	}

	raced := make(map[string]bool, len(skipped))
	for _, id := range skipped {
		raced[id] = true
	}
	result.Skipped = append(result.Skipped, skipped...)
	for _, id := range pending.IDs {
		if !raced[id] {
			result.Added = append(result.Added, id)
		}
	}

	log.Debug("Added documents", "collection", c.record.Name, "added", len(result.Added), "skipped", len(result.Skipped))
	return result, nil
}

// Upsert inserts new records and replaces the text, metadata and embedding of
// existing ones.
func (c *Collection) Upsert(ctx context.Context, req AddRequest) error {
	if err := validateAdd(req); err != nil {
		return err
	}

	docs, err := c.embed(ctx, req)
	if err != nil {
		return err
	}

	if err := c.client.store.UpsertDocuments(ctx, c.record.ID, docs); err != nil {
		return err
	}

	log.Debug("Upserted documents", "collection", c.record.Name, "count", len(docs))
	return nil
}

// Query returns, for each text, up to NResults records ordered by ascending
// cosine distance. It never mutates the collection.
func (c *Collection) Query(ctx context.Context, req QueryRequest) ([]QueryResult, error) {
	if len(req.Texts) == 0 {
		return nil, ErrEmptyQuery
	}

	n := req.NResults
	if n <= 0 {
		n = DefaultNResults
	}

	results := make([]QueryResult, 0, len(req.Texts))
	for _, text := range req.Texts {
		log.Debug("Querying collection", "collection", c.record.Name, "k", n, "query", truncate(text, 50))

		emb, err := c.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}

		hits, err := c.client.store.Search(ctx, c.record.ID, emb, n, req.Where)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}

		group := QueryResult{Query: text, Matches: make([]Match, 0, len(hits))}
		for _, h := range hits {
			group.Matches = append(group.Matches, Match{
				ID:       h.Document.ID,
				Document: h.Document.Content,
				Metadata: h.Document.Metadata,
				Distance: h.Distance,
			})
		}
		results = append(results, group)
	}

	return results, nil
}

// Delete removes records by ID and returns how many existed. Unknown IDs are ignored.
func (c *Collection) Delete(ctx context.Context, ids ...string) (int, error) {
	n, err := c.client.store.DeleteDocuments(ctx, c.record.ID, ids)
	if err != nil {
		return 0, err
	}
	log.Debug("Deleted documents", "collection", c.record.Name, "requested", len(ids), "deleted", n)
	return n, nil
}

// DeleteWhere removes every record whose metadata matches where.
func (c *Collection) DeleteWhere(ctx context.Context, where Metadata) (int, error) {
	return c.client.store.DeleteWhere(ctx, c.record.ID, where)
}

// Replace swaps every record matching where for the records in req. All
// embeddings are computed first, batchSize texts per call (all at once when
// batchSize <= 0), so a failed embedding leaves the old records in place.
// An empty req only deletes.
func (c *Collection) Replace(ctx context.Context, where Metadata, req AddRequest, batchSize int) error {
	var docs []store.DocumentInput
	if len(req.IDs) > 0 || len(req.Documents) > 0 {
		if err := validateAdd(req); err != nil {
			return err
		}
		if batchSize <= 0 {
			batchSize = len(req.IDs)
		}

		docs = make([]store.DocumentInput, 0, len(req.IDs))
		for i := 0; i < len(req.IDs); i += batchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			end := min(i+batchSize, len(req.IDs))
			batch := AddRequest{IDs: req.IDs[i:end], Documents: req.Documents[i:end]}
			if req.Metadatas != nil {
				batch.Metadatas = req.Metadatas[i:end]
			}
			embedded, err := c.embed(ctx, batch)
			if err != nil {
				return err
			}
			docs = append(docs, embedded...)
		}
	}

	if err := c.client.store.ReplaceWhere(ctx, c.record.ID, where, docs); err != nil {
		return err
	}

	log.Debug("Replaced documents", "collection", c.record.Name, "count", len(docs))
	return nil
}

// Get returns records in insertion order.
func (c *Collection) Get(ctx context.Context, req GetRequest) ([]Document, error) {
	return c.client.store.GetDocuments(ctx, c.record.ID, store.GetOptions{
		IDs:               req.IDs,
		Where:             req.Where,
		Limit:             req.Limit,
		Offset:            req.Offset,
		IncludeEmbeddings: req.IncludeEmbeddings,
	})
}

// Count returns the number of records.
func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.client.store.CountDocuments(ctx, c.record.ID)
}

// Peek returns the first n records (DefaultPeekLimit when n <= 0).
func (c *Collection) Peek(ctx context.Context, n int) ([]Document, error) {
	if n <= 0 {
		n = DefaultPeekLimit
	}
	return c.Get(ctx, GetRequest{Limit: n})
}

// Modify renames the collection and/or replaces its metadata. Records are untouched.
func (c *Collection) Modify(ctx context.Context, req ModifyRequest) error {
	if req.Name != nil {
		if err := ValidateName(*req.Name); err != nil {
			return err
		}
	}

	rec, err := c.client.store.UpdateCollection(ctx, c.record.ID, store.CollectionUpdate{
		Name:     req.Name,
		Metadata: req.Metadata,
	})
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, c.record.Name)
	}

	c.record = *rec
	return nil
}

// embed computes embeddings for a validated request.
func (c *Collection) embed(ctx context.Context, req AddRequest) ([]store.DocumentInput, error) {
	vectors, err := c.embedder.EmbedBatch(ctx, req.Documents)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(req.Documents) {
		return nil, fmt.Errorf("embedding function returned %d vectors for %d documents", len(vectors), len(req.Documents))
	}

	docs := make([]store.DocumentInput, len(req.IDs))
	for i, id := range req.IDs {
		docs[i] = store.DocumentInput{
			ID:        id,
			Content:   req.Documents[i],
			Metadata:  metadataAt(req.Metadatas, i),
			Embedding: vectors[i],
		}
	}
	return docs, nil
}

func validateAdd(req AddRequest) error {
	if len(req.IDs) == 0 {
		return fmt.Errorf("%w: at least one id is required", ErrInvalidID)
	}
	if len(req.Documents) != len(req.IDs) {
		return fmt.Errorf("%w: %d ids, %d documents", ErrLengthMismatch, len(req.IDs), len(req.Documents))
	}
	if req.Metadatas != nil && len(req.Metadatas) != len(req.IDs) {
		return fmt.Errorf("%w: %d ids, %d metadatas", ErrLengthMismatch, len(req.IDs), len(req.Metadatas))
	}

	seen := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		if id == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidID)
		}
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = true
	}

	for i := range req.Metadatas {
		if _, err := store.NormalizeMetadata(req.Metadatas[i]); err != nil {
			return fmt.Errorf("metadata for %s: %w", req.IDs[i], err)
		}
	}
	return nil
}

func metadataAt(m []Metadata, i int) Metadata {
	if m == nil {
		return nil
	}
	return m[i]
}

// truncate shortens a string for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
