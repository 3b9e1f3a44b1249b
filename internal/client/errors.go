package client

import (
	"errors"

	"github.com/nickcecere/lvec/internal/store"
)

var (
	// ErrCollectionNotFound is returned when a named collection does not exist.
	ErrCollectionNotFound = store.ErrCollectionNotFound
	// ErrCollectionExists is returned when creating or renaming onto a taken name.
	ErrCollectionExists = store.ErrCollectionExists
	// ErrDimensionMismatch is returned when an embedding's length differs from the collection's.
	ErrDimensionMismatch = store.ErrDimensionMismatch
	// ErrInvalidMetadata is returned for non-scalar metadata values.
	ErrInvalidMetadata = store.ErrInvalidMetadata

	ErrLengthMismatch   = errors.New("ids, documents and metadatas must have the same length")
	ErrDuplicateID      = errors.New("duplicate id in request")
	ErrInvalidID        = errors.New("invalid document id")
	ErrInvalidName      = errors.New("invalid collection name")
	ErrEmptyQuery       = errors.New("at least one query text is required")
	ErrEmbedderMismatch = errors.New("embedding function does not match collection")
)
