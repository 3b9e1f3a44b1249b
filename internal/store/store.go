package store

import "context"

// Store defines the interface for collection and vector storage operations.
type Store interface {
	// Collection management
	CreateCollection(ctx context.Context, in CollectionInput) (*CollectionRecord, error)
	GetCollection(ctx context.Context, name string) (*CollectionRecord, error)
	ListCollections(ctx context.Context) ([]CollectionRecord, error)
	UpdateCollection(ctx context.Context, id int64, upd CollectionUpdate) (*CollectionRecord, error)
	DeleteCollection(ctx context.Context, name string) (bool, error)

	// Document operations
	ExistingIDs(ctx context.Context, collectionID int64, ids []string) (map[string]bool, error)
	InsertDocuments(ctx context.Context, collectionID int64, docs []DocumentInput) ([]string, error)
	UpsertDocuments(ctx context.Context, collectionID int64, docs []DocumentInput) error
	DeleteDocuments(ctx context.Context, collectionID int64, ids []string) (int, error)
	DeleteWhere(ctx context.Context, collectionID int64, where Metadata) (int, error)
	ReplaceWhere(ctx context.Context, collectionID int64, where Metadata, docs []DocumentInput) error
	GetDocuments(ctx context.Context, collectionID int64, opts GetOptions) ([]DocumentRecord, error)
	CountDocuments(ctx context.Context, collectionID int64) (int, error)

	// Search
	Search(ctx context.Context, collectionID int64, queryEmbedding []float32, topK int, where Metadata) ([]SearchResult, error)

	// Stats
	GetStats(ctx context.Context) (*Stats, error)

	Close() error
}
