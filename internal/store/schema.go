package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
)

const currentSchemaVersion = 1

// Schema definitions
const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

const collectionsTable = `
CREATE TABLE IF NOT EXISTS collections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid TEXT UNIQUE NOT NULL,
	name TEXT UNIQUE NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	embedding_provider TEXT NOT NULL,
	embedding_model TEXT NOT NULL,
	embedding_dimensions INTEGER NOT NULL DEFAULT 0,
	created_at TEXT DEFAULT (datetime('now')),
	updated_at TEXT DEFAULT (datetime('now'))
);
`

const documentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	external_id TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TEXT DEFAULT (datetime('now')),
	updated_at TEXT DEFAULT (datetime('now')),
	UNIQUE(collection_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection_id ON documents(collection_id);
`

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// vectorTable returns the name of a collection's sqlite-vec table.
func vectorTable(collectionID int64) string {
	return fmt.Sprintf("collection_vectors_%d", collectionID)
}

// createVectorTable creates the sqlite-vec virtual table for one collection.
func createVectorTable(ctx context.Context, q dbtx, collectionID int64, dimensions int) error {
	query := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
			document_id INTEGER PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, vectorTable(collectionID), dimensions)

	log.Debug("Creating vector table", "collection_id", collectionID, "dimensions", dimensions)
	_, err := q.ExecContext(ctx, query)
	return err
}

// dropVectorTable removes a collection's sqlite-vec table if present.
func dropVectorTable(ctx context.Context, q dbtx, collectionID int64) error {
	_, err := q.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", vectorTable(collectionID)))
	return err
}

// initSchema initializes the database schema.
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		version = 0
	} else if err != nil {
		return fmt.Errorf("failed to check schema version: %w", err)
	}

	if version >= currentSchemaVersion {
		log.Debug("Schema is up to date", "version", version)
		return nil
	}

	log.Debug("Migrating schema", "from", version, "to", currentSchemaVersion)

	if version < 1 {
		if err := migrateV1(db); err != nil {
			return fmt.Errorf("failed to migrate to v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema. Vector tables are created per
// collection once the first embedding fixes the dimensionality.
func migrateV1(db *sql.DB) error {
	log.Debug("Applying migration v1")

	for _, table := range []string{collectionsTable, documentsTable} {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if _, err := db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", 1); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return nil
}
