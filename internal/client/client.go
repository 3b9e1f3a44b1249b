// Package client is the public face of the vector store: it opens transient
// or durable stores and manages named collections of embedded documents.
package client

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/embeddings"
	"github.com/nickcecere/lvec/internal/store"
)

// Metadata maps string keys to scalar values.
type Metadata = store.Metadata

// Document is a stored record as returned by Get and Peek.
type Document = store.DocumentRecord

// ResolverFunc re-creates the embedding function of a stored collection.
type ResolverFunc func(provider, model string) (embeddings.Service, error)

// Client owns one store handle.
type Client struct {
	store    store.Store
	path     string
	embedder embeddings.Service
	resolver ResolverFunc
}

// Option configures a Client.
type Option func(*Client)

// WithEmbedder sets the embedding function used for new collections.
func WithEmbedder(e embeddings.Service) Option {
	return func(c *Client) {
		c.embedder = e
	}
}

// WithResolver sets how embedding functions are rebuilt for existing collections.
func WithResolver(r ResolverFunc) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// NewEphemeral creates a client backed by an in-memory store.
// Everything is discarded on Close.
func NewEphemeral(opts ...Option) (*Client, error) {
	st, err := store.NewMemoryStore()
	if err != nil {
		return nil, err
	}
	return newClient(st, "", opts), nil
}

// NewPersistent creates a client whose data lives under dir. The directory is
// created when missing.
func NewPersistent(dir string, opts ...Option) (*Client, error) {
	if dir == "" {
		return nil, fmt.Errorf("persistent path is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	st, err := store.NewSQLiteStore(config.DatabaseFile(dir))
	if err != nil {
		return nil, err
	}
	return newClient(st, dir, opts), nil
}

// New wraps an existing store.
func New(st store.Store, opts ...Option) *Client {
	return newClient(st, "", opts)
}

func newClient(st store.Store, dir string, opts []Option) *Client {
	c := &Client{store: st, path: dir}
	for _, opt := range opts {
		opt(c)
	}
	if c.embedder == nil {
		c.embedder = embeddings.NewLocalService(config.DefaultLocalDimensions)
	}
	if c.resolver == nil {
		c.resolver = embeddings.Resolver(config.Get())
	}
	return c
}

// Close releases the store.
func (c *Client) Close() error {
	return c.store.Close()
}

// Path returns the storage directory, or "" for an ephemeral client.
func (c *Client) Path() string {
	return c.path
}

// Persistent reports whether data survives Close.
func (c *Client) Persistent() bool {
	return c.path != ""
}

// Stats returns store-wide counts.
func (c *Client) Stats(ctx context.Context) (*store.Stats, error) {
	return c.store.GetStats(ctx)
}

// CollectionOption configures collection creation or lookup.
type CollectionOption func(*collectionOptions)

type collectionOptions struct {
	metadata Metadata
	embedder embeddings.Service
}

// WithMetadata sets the metadata of a newly created collection.
func WithMetadata(m Metadata) CollectionOption {
	return func(o *collectionOptions) {
		o.metadata = m
	}
}

// WithEmbeddingFunction binds an embedding function to the collection.
func WithEmbeddingFunction(e embeddings.Service) CollectionOption {
	return func(o *collectionOptions) {
		o.embedder = e
	}
}

// CollectionInfo summarizes a collection for listings.
type CollectionInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	Provider   string    `json:"embedding_provider"`
	Model      string    `json:"embedding_model"`
	Dimensions int       `json:"dimensions"`
	Count      int       `json:"count"`
	CreatedAt  time.Time `json:"created_at"`
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{1,61}[A-Za-z0-9]$`)

// ValidateName checks a collection name: 3-63 characters from
// [A-Za-z0-9._-], starting and ending alphanumeric, no "..".
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// CreateCollection creates a new collection. It fails with ErrCollectionExists
// when the name is taken.
func (c *Client) CreateCollection(ctx context.Context, name string, opts ...CollectionOption) (*Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	o := applyCollectionOptions(opts)
	emb := o.embedder
	if emb == nil {
		emb = c.embedder
	}

	rec, err := c.store.CreateCollection(ctx, store.CollectionInput{
		Name:              name,
		Metadata:          o.metadata,
		EmbeddingProvider: string(emb.Provider()),
		EmbeddingModel:    emb.ModelName(),
	})
	if err != nil {
		return nil, err
	}

	log.Debug("Created collection", "name", name, "provider", emb.Provider(), "model", emb.ModelName())
	return &Collection{client: c, record: *rec, embedder: emb}, nil
}

// GetCollection fetches an existing collection by name.
func (c *Client) GetCollection(ctx context.Context, name string, opts ...CollectionOption) (*Collection, error) {
	rec, err := c.store.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c.bind(rec, applyCollectionOptions(opts))
}

// GetOrCreateCollection returns the named collection, creating it when absent.
// Metadata options only apply on creation.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string, opts ...CollectionOption) (*Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	rec, err := c.store.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return c.bind(rec, applyCollectionOptions(opts))
	}
	return c.CreateCollection(ctx, name, opts...)
}

// bind attaches the embedding function a stored collection was created with.
func (c *Client) bind(rec *store.CollectionRecord, o collectionOptions) (*Collection, error) {
	if o.embedder != nil {
		if !sameFunction(o.embedder, rec) {
			return nil, fmt.Errorf("%w: collection %s uses %s/%s, got %s/%s", ErrEmbedderMismatch,
				rec.Name, rec.EmbeddingProvider, rec.EmbeddingModel, o.embedder.Provider(), o.embedder.ModelName())
		}
		return &Collection{client: c, record: *rec, embedder: o.embedder}, nil
	}

	if sameFunction(c.embedder, rec) {
		return &Collection{client: c, record: *rec, embedder: c.embedder}, nil
	}

	emb, err := c.resolver(rec.EmbeddingProvider, rec.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("failed to restore embedding function for %s: %w", rec.Name, err)
	}
	return &Collection{client: c, record: *rec, embedder: emb}, nil
}

func sameFunction(e embeddings.Service, rec *store.CollectionRecord) bool {
	return string(e.Provider()) == rec.EmbeddingProvider && e.ModelName() == rec.EmbeddingModel
}

func applyCollectionOptions(opts []CollectionOption) collectionOptions {
	var o collectionOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ListCollections returns every collection with its record count, ordered by name.
func (c *Client) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	records, err := c.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]CollectionInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, collectionInfo(&rec))
	}
	return infos, nil
}

func collectionInfo(rec *store.CollectionRecord) CollectionInfo {
	return CollectionInfo{
		ID:         rec.UUID,
		Name:       rec.Name,
		Metadata:   rec.Metadata,
		Provider:   rec.EmbeddingProvider,
		Model:      rec.EmbeddingModel,
		Dimensions: rec.EmbeddingDimensions,
		Count:      rec.DocumentCount,
		CreatedAt:  rec.CreatedAt,
	}
}

// DeleteCollection removes a collection and all of its records. There is no undo.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	deleted, err := c.store.DeleteCollection(ctx, name)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	log.Debug("Deleted collection", "name", name)
	return nil
}
