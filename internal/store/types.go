// Package store provides collection, document and vector storage using SQLite and sqlite-vec.
package store

import (
	"errors"
	"time"
)

var (
	// ErrCollectionNotFound is returned when a collection ID no longer exists.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists is returned when a collection name is already taken.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrDimensionMismatch is returned when a vector does not match the
	// dimensionality fixed by the collection's first vector.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidMetadata is returned for non-scalar metadata values or bad filter keys.
	ErrInvalidMetadata = errors.New("invalid metadata")
)

// Metadata maps string keys to scalar values (string, bool, integer, float).
type Metadata map[string]any

// CollectionRecord represents a stored collection.
type CollectionRecord struct {
	ID                  int64     `json:"id"`
	UUID                string    `json:"uuid"`
	Name                string    `json:"name"`
	Metadata            Metadata  `json:"metadata,omitempty"`
	EmbeddingProvider   string    `json:"embedding_provider"`
	EmbeddingModel      string    `json:"embedding_model"`
	EmbeddingDimensions int       `json:"embedding_dimensions"` // 0 until the first vector is written
	DocumentCount       int       `json:"document_count"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// CollectionInput holds the fields needed to create a collection.
type CollectionInput struct {
	Name              string
	Metadata          Metadata
	EmbeddingProvider string
	EmbeddingModel    string
}

// CollectionUpdate changes a collection's name and/or metadata. Nil fields are left unchanged.
type CollectionUpdate struct {
	Name     *string
	Metadata Metadata
}

// DocumentInput is a document to write, with its embedding already computed.
type DocumentInput struct {
	ID        string
	Content   string
	Metadata  Metadata
	Embedding []float32
}

// DocumentRecord represents a stored document.
type DocumentRecord struct {
	ID        string    `json:"id"`
	Content   string    `json:"document"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult is a document with its cosine distance from the query vector.
type SearchResult struct {
	Document DocumentRecord `json:"document"`
	Distance float64        `json:"distance"`
}

// GetOptions selects documents by ID and/or metadata equality.
type GetOptions struct {
	IDs               []string
	Where             Metadata
	Limit             int
	Offset            int
	IncludeEmbeddings bool
}

// Stats contains statistics about the whole store.
type Stats struct {
	Path        string `json:"path"`
	Collections int    `json:"collections"`
	Documents   int    `json:"documents"`
	SizeBytes   int64  `json:"size_bytes"`
}
