package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register sqlite-vec extension
	sqlite_vec.Auto()
}

// maxKNN is the largest k sqlite-vec accepts for a KNN query.
const maxKNN = 4096

// SQLiteStore implements the Store interface using SQLite and sqlite-vec.
type SQLiteStore struct {
	db   *sql.DB
	path string // empty for in-memory stores
	mu   sync.RWMutex
}

// NewSQLiteStore opens (or creates) a durable store at the given file path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug("Opened SQLite store", "path", dbPath)

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// NewMemoryStore creates a transient store. All data is lost on Close.
func NewMemoryStore() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug("Opened in-memory SQLite store")

	return &SQLiteStore{db: db}, nil
}

// Path returns the database file path, or "" for an in-memory store.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const collectionColumns = `
	c.id, c.uuid, c.name, c.metadata, c.embedding_provider, c.embedding_model,
	c.embedding_dimensions, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM documents d WHERE d.collection_id = c.id)
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*CollectionRecord, error) {
	var record CollectionRecord
	var metadata, createdAt, updatedAt string

	if err := row.Scan(
		&record.ID, &record.UUID, &record.Name, &metadata,
		&record.EmbeddingProvider, &record.EmbeddingModel, &record.EmbeddingDimensions,
		&createdAt, &updatedAt, &record.DocumentCount,
	); err != nil {
		return nil, err
	}

	md, err := decodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	record.Metadata = md
	record.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	record.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &record, nil
}

// CreateCollection creates a new collection record.
func (s *SQLiteStore) CreateCollection(ctx context.Context, in CollectionInput) (*CollectionRecord, error) {
	md, err := NormalizeMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}
	mdJSON, err := encodeMetadata(md)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getCollection(ctx, s.db, "c.name = ?", in.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionExists, in.Name)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	id := uuid.NewString()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (uuid, name, metadata, embedding_provider, embedding_model, embedding_dimensions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, id, in.Name, mdJSON, in.EmbeddingProvider, in.EmbeddingModel, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	rowID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get collection ID: %w", err)
	}

	log.Debug("Created collection", "name", in.Name, "id", rowID, "uuid", id)

	createdAt, _ := time.Parse(time.RFC3339, now)
	return &CollectionRecord{
		ID:                rowID,
		UUID:              id,
		Name:              in.Name,
		Metadata:          md,
		EmbeddingProvider: in.EmbeddingProvider,
		EmbeddingModel:    in.EmbeddingModel,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}, nil
}

// GetCollection retrieves a collection by name. It returns (nil, nil) when absent.
func (s *SQLiteStore) GetCollection(ctx context.Context, name string) (*CollectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getCollection(ctx, s.db, "c.name = ?", name)
}

func (s *SQLiteStore) getCollection(ctx context.Context, q dbtx, cond string, arg any) (*CollectionRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+collectionColumns+" FROM collections c WHERE "+cond, arg)
	record, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return record, nil
}

// ListCollections returns all collections ordered by name.
func (s *SQLiteStore) ListCollections(ctx context.Context) ([]CollectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+collectionColumns+" FROM collections c ORDER BY c.name")
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []CollectionRecord
	for rows.Next() {
		record, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, *record)
	}

	return collections, rows.Err()
}

// UpdateCollection renames a collection and/or replaces its metadata.
// Documents and vectors are untouched.
func (s *SQLiteStore) UpdateCollection(ctx context.Context, id int64, upd CollectionUpdate) (*CollectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := s.getCollection(ctx, tx, "c.id = ?", id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if upd.Name != nil && *upd.Name != current.Name {
		taken, err := s.getCollection(ctx, tx, "c.name = ?", *upd.Name)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return nil, fmt.Errorf("%w: %s", ErrCollectionExists, *upd.Name)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE collections SET name = ?, updated_at = ? WHERE id = ?", *upd.Name, now, id); err != nil {
			return nil, fmt.Errorf("failed to rename collection: %w", err)
		}
	}

	if upd.Metadata != nil {
		md, err := NormalizeMetadata(upd.Metadata)
		if err != nil {
			return nil, err
		}
		mdJSON, err := encodeMetadata(md)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE collections SET metadata = ?, updated_at = ? WHERE id = ?", mdJSON, now, id); err != nil {
			return nil, fmt.Errorf("failed to update collection metadata: %w", err)
		}
	}

	updated, err := s.getCollection(ctx, tx, "c.id = ?", id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return updated, nil
}

// DeleteCollection deletes a collection, its documents and its vector table.
// It reports whether a collection was removed.
func (s *SQLiteStore) DeleteCollection(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM collections WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get collection ID: %w", err)
	}

	if err := dropVectorTable(ctx, tx, id); err != nil {
		return false, fmt.Errorf("failed to drop vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection_id = ?", id); err != nil {
		return false, fmt.Errorf("failed to delete documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", id); err != nil {
		return false, fmt.Errorf("failed to delete collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	log.Debug("Deleted collection", "name", name, "id", id)
	return true, nil
}

// ExistingIDs reports which of ids are already stored in the collection.
func (s *SQLiteStore) ExistingIDs(ctx context.Context, collectionID int64, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}

	placeholders, args := inArgs(ids)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT external_id FROM documents WHERE collection_id = ? AND external_id IN (%s)", placeholders),
		append([]any{collectionID}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document ID: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

// InsertDocuments adds new documents. IDs that already exist are left
// untouched and returned as skipped.
func (s *SQLiteStore) InsertDocuments(ctx context.Context, collectionID int64, docs []DocumentInput) ([]string, error) {
	return s.writeDocuments(ctx, collectionID, docs, false)
}

// UpsertDocuments inserts new documents and replaces the content, metadata
// and embedding of existing ones.
func (s *SQLiteStore) UpsertDocuments(ctx context.Context, collectionID int64, docs []DocumentInput) error {
	_, err := s.writeDocuments(ctx, collectionID, docs, true)
	return err
}

func (s *SQLiteStore) writeDocuments(ctx context.Context, collectionID int64, docs []DocumentInput, replace bool) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	// Encode everything before taking the lock
	encoded, err := encodeDocuments(docs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	skipped, err := s.writeTx(ctx, tx, collectionID, docs, encoded, replace)
	if err != nil {
		return nil, err
	}
	if err := touchCollection(ctx, tx, collectionID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	log.Debug("Wrote documents", "collection_id", collectionID, "count", len(docs)-len(skipped), "skipped", len(skipped))
	return skipped, nil
}

// ReplaceWhere deletes every document matching where and writes docs in
// the same transaction. On error the collection is left unchanged.
func (s *SQLiteStore) ReplaceWhere(ctx context.Context, collectionID int64, where Metadata, docs []DocumentInput) error {
	if len(where) == 0 {
		return fmt.Errorf("%w: replace filter must not be empty", ErrInvalidMetadata)
	}

	clause, args, err := whereClause("d", where)
	if err != nil {
		return err
	}
	encoded, err := encodeDocuments(docs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleted, err := deleteTx(ctx, tx, collectionID, clause, args)
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		if _, err := s.writeTx(ctx, tx, collectionID, docs, encoded, true); err != nil {
			return err
		}
	}
	if err := touchCollection(ctx, tx, collectionID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Debug("Replaced documents", "collection_id", collectionID, "deleted", deleted, "written", len(docs))
	return nil
}

func encodeDocuments(docs []DocumentInput) ([]string, error) {
	encoded := make([]string, len(docs))
	for i, doc := range docs {
		md, err := NormalizeMetadata(doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		encoded[i], err = encodeMetadata(md)
		if err != nil {
			return nil, err
		}
		if len(doc.Embedding) == 0 {
			return nil, fmt.Errorf("document %s has no embedding", doc.ID)
		}
	}
	return encoded, nil
}

// writeTx writes docs inside tx. Existing IDs are replaced when replace is
// set and returned as skipped otherwise.
func (s *SQLiteStore) writeTx(ctx context.Context, tx *sql.Tx, collectionID int64, docs []DocumentInput, encoded []string, replace bool) ([]string, error) {
	if err := s.ensureDimensions(ctx, tx, collectionID, len(docs[0].Embedding)); err != nil {
		return nil, err
	}

	table := vectorTable(collectionID)
	now := time.Now().UTC().Format(time.RFC3339)
	var skipped []string

	for i, doc := range docs {
		if len(doc.Embedding) != len(docs[0].Embedding) {
			return nil, fmt.Errorf("%w: document %s has %d dimensions, expected %d",
				ErrDimensionMismatch, doc.ID, len(doc.Embedding), len(docs[0].Embedding))
		}

		var rowID int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM documents WHERE collection_id = ? AND external_id = ?",
			collectionID, doc.ID,
		).Scan(&rowID)

		switch {
		case err == nil && !replace:
			skipped = append(skipped, doc.ID)
			continue
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				"UPDATE documents SET content = ?, metadata = ?, updated_at = ? WHERE id = ?",
				doc.Content, encoded[i], now, rowID,
			); err != nil {
				return nil, fmt.Errorf("failed to update document %s: %w", doc.ID, err)
			}
			// vec0 has no UPDATE; replace the row
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE document_id = ?", table), rowID,
			); err != nil {
				return nil, fmt.Errorf("failed to delete old vector for %s: %w", doc.ID, err)
			}
		case err == sql.ErrNoRows:
			result, err := tx.ExecContext(ctx, `
				INSERT INTO documents (collection_id, external_id, content, metadata, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, collectionID, doc.ID, doc.Content, encoded[i], now, now)
			if err != nil {
				return nil, fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
			}
			rowID, err = result.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("failed to get row ID for %s: %w", doc.ID, err)
			}
		default:
			return nil, fmt.Errorf("failed to check existing document %s: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (document_id, embedding) VALUES (?, ?)", table),
			rowID, serializeEmbedding(doc.Embedding),
		); err != nil {
			return nil, fmt.Errorf("failed to insert vector for %s: %w", doc.ID, err)
		}
	}

	return skipped, nil
}

func touchCollection(ctx context.Context, tx *sql.Tx, collectionID int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, "UPDATE collections SET updated_at = ? WHERE id = ?", now, collectionID); err != nil {
		return fmt.Errorf("failed to touch collection: %w", err)
	}
	return nil
}

// ensureDimensions fixes the collection's dimensionality on first write and
// creates its vector table. Later writes must match.
func (s *SQLiteStore) ensureDimensions(ctx context.Context, tx *sql.Tx, collectionID int64, dims int) error {
	var current int
	err := tx.QueryRowContext(ctx, "SELECT embedding_dimensions FROM collections WHERE id = ?", collectionID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: id %d", ErrCollectionNotFound, collectionID)
	}
	if err != nil {
		return fmt.Errorf("failed to read collection dimensions: %w", err)
	}

	if current == dims {
		return nil
	}
	if current != 0 {
		return fmt.Errorf("%w: collection has %d dimensions, got %d", ErrDimensionMismatch, current, dims)
	}

	if err := createVectorTable(ctx, tx, collectionID, dims); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE collections SET embedding_dimensions = ? WHERE id = ?", dims, collectionID); err != nil {
		return fmt.Errorf("failed to record dimensions: %w", err)
	}
	return nil
}

// DeleteDocuments removes documents by ID and returns how many were removed.
// Unknown IDs are ignored.
func (s *SQLiteStore) DeleteDocuments(ctx context.Context, collectionID int64, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders, args := inArgs(ids)
	return s.deleteMatching(ctx, collectionID,
		fmt.Sprintf(" AND d.external_id IN (%s)", placeholders), args)
}

// DeleteWhere removes documents whose metadata matches every key in where.
func (s *SQLiteStore) DeleteWhere(ctx context.Context, collectionID int64, where Metadata) (int, error) {
	if len(where) == 0 {
		return 0, fmt.Errorf("%w: delete filter must not be empty", ErrInvalidMetadata)
	}

	clause, args, err := whereClause("d", where)
	if err != nil {
		return 0, err
	}
	return s.deleteMatching(ctx, collectionID, clause, args)
}

func (s *SQLiteStore) deleteMatching(ctx context.Context, collectionID int64, clause string, args []any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleted, err := deleteTx(ctx, tx, collectionID, clause, args)
	if err != nil || deleted == 0 {
		return 0, err
	}
	if err := touchCollection(ctx, tx, collectionID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	log.Debug("Deleted documents", "collection_id", collectionID, "count", deleted)
	return deleted, nil
}

// deleteTx removes the documents matching clause, and their vectors,
// inside tx.
func deleteTx(ctx context.Context, tx *sql.Tx, collectionID int64, clause string, args []any) (int, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT d.id FROM documents d WHERE d.collection_id = ?"+clause,
		append([]any{collectionID}, args...)...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to find documents: %w", err)
	}

	// Collect first; the transaction holds a single connection
	var rowIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan document: %w", err)
		}
		rowIDs = append(rowIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(rowIDs) == 0 {
		return 0, nil
	}

	var dims int
	if err := tx.QueryRowContext(ctx, "SELECT embedding_dimensions FROM collections WHERE id = ?", collectionID).Scan(&dims); err != nil {
		return 0, fmt.Errorf("failed to read collection dimensions: %w", err)
	}

	table := vectorTable(collectionID)
	for _, id := range rowIDs {
		if dims > 0 {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE document_id = ?", table), id); err != nil {
				return 0, fmt.Errorf("failed to delete vector: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("failed to delete document: %w", err)
		}
	}
	return len(rowIDs), nil
}

// GetDocuments returns documents in insertion order.
func (s *SQLiteStore) GetDocuments(ctx context.Context, collectionID int64, opts GetOptions) ([]DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT d.id, d.external_id, d.content, d.metadata, d.created_at, d.updated_at FROM documents d WHERE d.collection_id = ?"
	args := []any{collectionID}

	if len(opts.IDs) > 0 {
		placeholders, idArgs := inArgs(opts.IDs)
		query += fmt.Sprintf(" AND d.external_id IN (%s)", placeholders)
		args = append(args, idArgs...)
	}

	clause, whereArgs, err := whereClause("d", opts.Where)
	if err != nil {
		return nil, err
	}
	query += clause + " ORDER BY d.id"
	args = append(args, whereArgs...)

	switch {
	case opts.Limit > 0:
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	case opts.Offset > 0:
		// SQLite needs a LIMIT before OFFSET; -1 means no limit
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}

	var docs []DocumentRecord
	var rowIDs []int64
	for rows.Next() {
		var doc DocumentRecord
		var rowID int64
		var metadata, createdAt, updatedAt string
		if err := rows.Scan(&rowID, &doc.ID, &doc.Content, &metadata, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Metadata, err = decodeMetadata(metadata)
		if err != nil {
			rows.Close()
			return nil, err
		}
		doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		doc.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		docs = append(docs, doc)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if opts.IncludeEmbeddings && len(docs) > 0 {
		table := vectorTable(collectionID)
		for i, rowID := range rowIDs {
			var blob []byte
			err := s.db.QueryRowContext(ctx,
				fmt.Sprintf("SELECT embedding FROM %s WHERE document_id = ?", table), rowID,
			).Scan(&blob)
			if err != nil {
				return nil, fmt.Errorf("failed to read embedding for %s: %w", docs[i].ID, err)
			}
			docs[i].Embedding, err = deserializeEmbedding(blob)
			if err != nil {
				return nil, err
			}
		}
	}

	return docs, nil
}

// CountDocuments returns the number of documents in a collection.
func (s *SQLiteStore) CountDocuments(ctx context.Context, collectionID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection_id = ?", collectionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Search performs a cosine KNN search within one collection, optionally
// filtered by metadata equality.
func (s *SQLiteStore) Search(ctx context.Context, collectionID int64, queryEmbedding []float32, topK int, where Metadata) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	clause, whereArgs, err := whereClause("d", where)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var dims int
	err = s.db.QueryRowContext(ctx, "SELECT embedding_dimensions FROM collections WHERE id = ?", collectionID).Scan(&dims)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrCollectionNotFound, collectionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection dimensions: %w", err)
	}
	if dims == 0 {
		// Nothing has been written yet
		return nil, nil
	}
	if len(queryEmbedding) != dims {
		return nil, fmt.Errorf("%w: collection has %d dimensions, query has %d", ErrDimensionMismatch, dims, len(queryEmbedding))
	}

	query, args := knnQuery(collectionID, queryEmbedding, topK)
	if len(where) > 0 {
		query, args = filteredQuery(collectionID, queryEmbedding, topK, clause, whereArgs)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var metadata, createdAt, updatedAt string
		if err := rows.Scan(&r.Document.ID, &r.Document.Content, &metadata, &createdAt, &updatedAt, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		r.Document.Metadata, err = decodeMetadata(metadata)
		if err != nil {
			return nil, err
		}
		r.Document.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.Document.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		results = append(results, r)
	}

	return results, rows.Err()
}

// knnQuery selects the topK nearest vectors with the vec0 index.
func knnQuery(collectionID int64, queryEmbedding []float32, topK int) (string, []any) {
	query := fmt.Sprintf(`
		SELECT d.external_id, d.content, d.metadata, d.created_at, d.updated_at, v.distance
		FROM %s v
		JOIN documents d ON d.id = v.document_id
		WHERE v.embedding MATCH ?
			AND v.k = ?
		ORDER BY v.distance ASC
	`, vectorTable(collectionID))
	return query, []any{serializeEmbedding(queryEmbedding), min(topK, maxKNN)}
}

// filteredQuery ranks every document matching the metadata clause by exact
// cosine distance. vec0 applies other constraints only after picking k
// neighbours, so a KNN window could miss matches that rank further out.
func filteredQuery(collectionID int64, queryEmbedding []float32, topK int, clause string, whereArgs []any) (string, []any) {
	query := fmt.Sprintf(`
		SELECT d.external_id, d.content, d.metadata, d.created_at, d.updated_at,
			vec_distance_cosine(v.embedding, ?) AS dist
		FROM documents d
		JOIN %s v ON v.document_id = d.id
		WHERE d.collection_id = ?%s
		ORDER BY dist ASC
		LIMIT ?
	`, vectorTable(collectionID), clause)

	args := []any{serializeEmbedding(queryEmbedding), collectionID}
	args = append(args, whereArgs...)
	return query, append(args, topK)
}

// GetStats returns statistics for the whole store.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{Path: s.path}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM collections").Scan(&stats.Collections); err != nil {
		return nil, fmt.Errorf("failed to count collections: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&stats.Documents); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	if s.path != "" {
		for _, p := range []string{s.path, s.path + "-wal"} {
			if info, err := os.Stat(p); err == nil {
				stats.SizeBytes += info.Size()
			}
		}
	}

	return stats, nil
}

// inArgs returns "?,?,?" and the matching argument slice.
func inArgs(values []string) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return strings.Join(placeholders, ","), args
}

// serializeEmbedding converts a float32 slice to bytes for sqlite-vec.
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding converts a sqlite-vec blob back to a float32 slice.
func deserializeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
