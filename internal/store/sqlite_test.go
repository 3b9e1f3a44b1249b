package store

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "lvec.sqlite3")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
	assert.Equal(t, dbPath, store.Path())
}

func TestNewMemoryStore(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	assert.Empty(t, store.Path())

	ctx := context.Background()
	_, err = store.CreateCollection(ctx, CollectionInput{Name: "travel_policies", EmbeddingProvider: "local", EmbeddingModel: "hash-4"})
	require.NoError(t, err)

	got, err := store.GetCollection(ctx, "travel_policies")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestCollectionCreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created, err := store.CreateCollection(ctx, CollectionInput{
		Name:              "travel_policies",
		Metadata:          Metadata{"owner": "hr", "version": 2},
		EmbeddingProvider: "local",
		EmbeddingModel:    "hash-4",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.UUID)
	assert.Equal(t, "travel_policies", created.Name)
	assert.Equal(t, 0, created.EmbeddingDimensions)
	assert.Equal(t, int64(2), created.Metadata["version"])

	retrieved, err := store.GetCollection(ctx, "travel_policies")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, created.ID, retrieved.ID)
	assert.Equal(t, created.UUID, retrieved.UUID)
	assert.Equal(t, Metadata{"owner": "hr", "version": int64(2)}, retrieved.Metadata)
	assert.Equal(t, 0, retrieved.DocumentCount)

	notFound, err := store.GetCollection(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, notFound)

	_, err = store.CreateCollection(ctx, CollectionInput{Name: "travel_policies"})
	assert.ErrorIs(t, err, ErrCollectionExists)
}

func TestCollectionInvalidMetadata(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.CreateCollection(context.Background(), CollectionInput{
		Name:     "bad",
		Metadata: Metadata{"nested": map[string]any{"a": 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestCollectionList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	b := createTestCollection(t, store, "company_benefits")
	createTestCollection(t, store, "employee_handbook")
	createTestCollection(t, store, "announcements")

	_, err := store.InsertDocuments(ctx, b.ID, []DocumentInput{
		{ID: "benefit_001", Content: "Health insurance", Embedding: testVector(1)},
	})
	require.NoError(t, err)

	collections, err := store.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, collections, 3)

	assert.Equal(t, "announcements", collections[0].Name)
	assert.Equal(t, "company_benefits", collections[1].Name)
	assert.Equal(t, 1, collections[1].DocumentCount)
	assert.Equal(t, 4, collections[1].EmbeddingDimensions)
	assert.Equal(t, "employee_handbook", collections[2].Name)
}

func TestCollectionUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := createTestCollection(t, store, "employee_handbook")
	createTestCollection(t, store, "company_benefits")

	_, err := store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "h1", Content: "Be kind", Embedding: testVector(1)},
	})
	require.NoError(t, err)

	newName := "employee_guidelines"
	updated, err := store.UpdateCollection(ctx, c.ID, CollectionUpdate{
		Name:     &newName,
		Metadata: Metadata{"description": "renamed"},
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "employee_guidelines", updated.Name)
	assert.Equal(t, "renamed", updated.Metadata["description"])
	assert.Equal(t, 1, updated.DocumentCount)
	assert.Equal(t, c.UUID, updated.UUID)

	old, err := store.GetCollection(ctx, "employee_handbook")
	require.NoError(t, err)
	assert.Nil(t, old)

	taken := "company_benefits"
	_, err = store.UpdateCollection(ctx, c.ID, CollectionUpdate{Name: &taken})
	assert.ErrorIs(t, err, ErrCollectionExists)

	missing, err := store.UpdateCollection(ctx, 9999, CollectionUpdate{Name: &newName})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCollectionDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := createTestCollection(t, store, "travel_policies")
	_, err := store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "policy_001", Content: "Economy class", Embedding: testVector(1)},
	})
	require.NoError(t, err)

	deleted, err := store.DeleteCollection(ctx, "travel_policies")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteCollection(ctx, "travel_policies")
	require.NoError(t, err)
	assert.False(t, deleted)

	// Re-created collection starts empty with a fresh dimensionality
	again := createTestCollection(t, store, "travel_policies")
	assert.Equal(t, 0, again.DocumentCount)

	count, err := store.CountDocuments(ctx, again.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = store.InsertDocuments(ctx, again.ID, []DocumentInput{
		{ID: "policy_001", Content: "Economy class", Embedding: []float32{1, 0}},
	})
	require.NoError(t, err)
}

func TestInsertDocumentsSkipsExisting(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, store, "travel_policies")

	skipped, err := store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "flight_policy_01", Content: "Economy for domestic flights", Metadata: Metadata{"policy_type": "flights"}, Embedding: testVector(1)},
		{ID: "hotel_policy_01", Content: "Hotels up to $250", Metadata: Metadata{"policy_type": "hotels"}, Embedding: testVector(2)},
	})
	require.NoError(t, err)
	assert.Empty(t, skipped)

	skipped, err = store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "hotel_policy_01", Content: "changed", Embedding: testVector(3)},
		{ID: "rental_car_policy_01", Content: "Mid-size sedan", Embedding: testVector(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hotel_policy_01"}, skipped)

	docs, err := store.GetDocuments(ctx, c.ID, GetOptions{IDs: []string{"hotel_policy_01"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Hotels up to $250", docs[0].Content)

	existing, err := store.ExistingIDs(ctx, c.ID, []string{"hotel_policy_01", "nope"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"hotel_policy_01": true}, existing)

	count, err := store.CountDocuments(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestUpsertDocuments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, store, "travel_policies")

	require.NoError(t, store.UpsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "hotel_policy_01", Content: "Hotels up to $250", Metadata: Metadata{"policy_type": "hotels"}, Embedding: testVector(1)},
	}))

	update := []DocumentInput{
		{ID: "hotel_policy_01", Content: "Hotels up to $300", Metadata: Metadata{"policy_type": "hotels", "max_spend": 300}, Embedding: testVector(2)},
		{ID: "train_policy_01", Content: "Train travel is encouraged", Metadata: Metadata{"last_updated": "2025-10-15"}, Embedding: testVector(3)},
	}
	require.NoError(t, store.UpsertDocuments(ctx, c.ID, update))
	// Same input again is a no-op
	require.NoError(t, store.UpsertDocuments(ctx, c.ID, update))

	docs, err := store.GetDocuments(ctx, c.ID, GetOptions{IncludeEmbeddings: true})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "hotel_policy_01", docs[0].ID)
	assert.Equal(t, "Hotels up to $300", docs[0].Content)
	assert.Equal(t, int64(300), docs[0].Metadata["max_spend"])
	assert.InDeltaSlice(t, testVector(2), docs[0].Embedding, 1e-6)

	assert.Equal(t, "train_policy_01", docs[1].ID)
	assert.Equal(t, "2025-10-15", docs[1].Metadata["last_updated"])

	results, err := store.Search(ctx, c.ID, testVector(2), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hotel_policy_01", results[0].Document.ID)
}

func TestDimensionMismatch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, store, "travel_policies")

	_, err := store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "a", Content: "a", Embedding: testVector(1)},
	})
	require.NoError(t, err)

	_, err = store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "b", Content: "b", Embedding: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "c", Content: "c", Embedding: testVector(1)},
		{ID: "d", Content: "d", Embedding: []float32{1}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	// Failed batches are rolled back
	count, err := store.CountDocuments(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.Search(ctx, c.ID, []float32{1, 0}, 1, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDeleteDocuments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, store, "travel_policies")

	_, err := store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "a", Content: "a", Embedding: testVector(1)},
		{ID: "b", Content: "b", Embedding: testVector(2)},
	})
	require.NoError(t, err)

	n, err := store.DeleteDocuments(ctx, c.ID, []string{"b", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.DeleteDocuments(ctx, c.ID, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	results, err := store.Search(ctx, c.ID, testVector(2), 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Document.ID)
}

func TestDeleteWhere(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, store, "imported")

	_, err := store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "a.md#0", Content: "a0", Metadata: Metadata{"source": "a.md"}, Embedding: testVector(1)},
		{ID: "a.md#1", Content: "a1", Metadata: Metadata{"source": "a.md"}, Embedding: testVector(2)},
		{ID: "b.md#0", Content: "b0", Metadata: Metadata{"source": "b.md"}, Embedding: testVector(3)},
	})
	require.NoError(t, err)

	n, err := store.DeleteWhere(ctx, c.ID, Metadata{"source": "a.md"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.DeleteWhere(ctx, c.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	count, err := store.CountDocuments(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetDocumentsFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, store, "travel_policies")

	_, err := store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "flight_policy_01", Content: "f1", Metadata: Metadata{"policy_type": "flights"}, Embedding: testVector(1)},
		{ID: "hotel_policy_01", Content: "h1", Metadata: Metadata{"policy_type": "hotels", "max_spend": 300}, Embedding: testVector(2)},
		{ID: "flight_policy_02", Content: "f2", Metadata: Metadata{"policy_type": "flights", "requires_portal": true}, Embedding: testVector(3)},
	})
	require.NoError(t, err)

	docs, err := store.GetDocuments(ctx, c.ID, GetOptions{Where: Metadata{"policy_type": "flights"}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "flight_policy_01", docs[0].ID)
	assert.Equal(t, "flight_policy_02", docs[1].ID)

	docs, err = store.GetDocuments(ctx, c.ID, GetOptions{Where: Metadata{"requires_portal": true}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, true, docs[0].Metadata["requires_portal"])

	docs, err = store.GetDocuments(ctx, c.ID, GetOptions{Where: Metadata{"max_spend": 300.0}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "hotel_policy_01", docs[0].ID)

	docs, err = store.GetDocuments(ctx, c.ID, GetOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "hotel_policy_01", docs[0].ID)

	docs, err = store.GetDocuments(ctx, c.ID, GetOptions{Offset: 1})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "hotel_policy_01", docs[0].ID)
	assert.Equal(t, "flight_policy_02", docs[1].ID)

	docs, err = store.GetDocuments(ctx, c.ID, GetOptions{Offset: 3})
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = store.GetDocuments(ctx, c.ID, GetOptions{Where: Metadata{"bad key": "x"}})
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestVectorSearch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, store, "travel_policies")

	_, err := store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "x", Content: "x axis", Metadata: Metadata{"axis": "x"}, Embedding: normalizeVector([]float32{1, 0, 0, 0})},
		{ID: "y", Content: "y axis", Metadata: Metadata{"axis": "y"}, Embedding: normalizeVector([]float32{0, 1, 0, 0})},
		{ID: "xy", Content: "between", Metadata: Metadata{"axis": "y"}, Embedding: normalizeVector([]float32{1, 1, 0, 0})},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, c.ID, []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].Document.ID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-5)
	assert.Equal(t, "xy", results[1].Document.ID)
	assert.Less(t, results[0].Distance, results[1].Distance)

	filtered, err := store.Search(ctx, c.ID, []float32{1, 0, 0, 0}, 5, Metadata{"axis": "y"})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "xy", filtered[0].Document.ID)
	assert.Equal(t, "y", filtered[1].Document.ID)

	empty := createTestCollection(t, store, "empty")
	none, err := store.Search(ctx, empty.ID, []float32{1, 0, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestVectorSearchFilterBeyondNearestNeighbours(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, store, "crowded")

	var docs []DocumentInput
	for i := range 40 {
		docs = append(docs, DocumentInput{
			ID:        fmt.Sprintf("near_%02d", i),
			Content:   "near",
			Metadata:  Metadata{"tag": "a"},
			Embedding: normalizeVector([]float32{1, 0.01 * float32(i), 0, 0}),
		})
	}
	docs = append(docs,
		DocumentInput{ID: "far_0", Content: "far", Metadata: Metadata{"tag": "b"}, Embedding: normalizeVector([]float32{0.2, 0, 1, 0})},
		DocumentInput{ID: "far_1", Content: "far", Metadata: Metadata{"tag": "b"}, Embedding: normalizeVector([]float32{0.1, 0, 1, 0})},
		DocumentInput{ID: "far_2", Content: "far", Metadata: Metadata{"tag": "b"}, Embedding: normalizeVector([]float32{0, 0, 1, 0})},
	)
	_, err := store.InsertDocuments(ctx, c.ID, docs)
	require.NoError(t, err)

	results, err := store.Search(ctx, c.ID, []float32{1, 0, 0, 0}, 2, Metadata{"tag": "b"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "far_0", results[0].Document.ID)
	assert.Equal(t, "far_1", results[1].Document.ID)
	assert.Less(t, results[0].Distance, results[1].Distance)

	none, err := store.Search(ctx, c.ID, []float32{1, 0, 0, 0}, 2, Metadata{"tag": "c"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReplaceWhere(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, store, "imported")

	_, err := store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "a.md#0", Content: "a0", Metadata: Metadata{"source": "a.md", "hash": "v1"}, Embedding: testVector(1)},
		{ID: "a.md#1", Content: "a1", Metadata: Metadata{"source": "a.md", "hash": "v1"}, Embedding: testVector(2)},
		{ID: "a.md#2", Content: "a2", Metadata: Metadata{"source": "a.md", "hash": "v1"}, Embedding: testVector(3)},
		{ID: "b.md#0", Content: "b0", Metadata: Metadata{"source": "b.md"}, Embedding: testVector(4)},
	})
	require.NoError(t, err)

	err = store.ReplaceWhere(ctx, c.ID, Metadata{"source": "a.md"}, []DocumentInput{
		{ID: "a.md#0", Content: "new a0", Metadata: Metadata{"source": "a.md", "hash": "v2"}, Embedding: testVector(5)},
	})
	require.NoError(t, err)

	docs, err := store.GetDocuments(ctx, c.ID, GetOptions{Where: Metadata{"source": "a.md"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "new a0", docs[0].Content)
	assert.Equal(t, "v2", docs[0].Metadata["hash"])

	results, err := store.Search(ctx, c.ID, testVector(5), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.md#0", results[0].Document.ID)

	t.Run("failed write keeps old documents", func(t *testing.T) {
		err := store.ReplaceWhere(ctx, c.ID, Metadata{"source": "a.md"}, []DocumentInput{
			{ID: "a.md#0", Content: "x", Metadata: Metadata{"source": "a.md"}, Embedding: testVector(6)},
			{ID: "a.md#1", Content: "y", Metadata: Metadata{"source": "a.md"}, Embedding: []float32{1, 0}},
		})
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		docs, err := store.GetDocuments(ctx, c.ID, GetOptions{Where: Metadata{"source": "a.md"}})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "new a0", docs[0].Content)
	})

	t.Run("no documents only deletes", func(t *testing.T) {
		require.NoError(t, store.ReplaceWhere(ctx, c.ID, Metadata{"source": "a.md"}, nil))

		count, err := store.CountDocuments(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	err = store.ReplaceWhere(ctx, c.ID, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lvec.sqlite3")
	ctx := context.Background()

	first, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	c, err := first.CreateCollection(ctx, CollectionInput{Name: "saved_policies", EmbeddingProvider: "local", EmbeddingModel: "hash-4"})
	require.NoError(t, err)
	_, err = first.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "expense_policy_01", Content: "Submit within 15 days", Metadata: Metadata{"days_limit": 15}, Embedding: testVector(1)},
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	reopened, err := second.GetCollection(ctx, "saved_policies")
	require.NoError(t, err)
	require.NotNil(t, reopened)
	assert.Equal(t, c.UUID, reopened.UUID)
	assert.Equal(t, 1, reopened.DocumentCount)

	results, err := second.Search(ctx, reopened.ID, testVector(1), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "expense_policy_01", results[0].Document.ID)
	assert.Equal(t, int64(15), results[0].Document.Metadata["days_limit"])
}

func TestGetStats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, store, "travel_policies")
	createTestCollection(t, store, "company_benefits")

	_, err := store.InsertDocuments(ctx, c.ID, []DocumentInput{
		{ID: "a", Content: "a", Embedding: testVector(1)},
	})
	require.NoError(t, err)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Collections)
	assert.Equal(t, 1, stats.Documents)
	assert.Greater(t, stats.SizeBytes, int64(0))
}

func TestSerializeEmbedding(t *testing.T) {
	in := []float32{1.0, -2.5, 0.125}
	blob := serializeEmbedding(in)
	assert.Len(t, blob, 12)

	out, err := deserializeEmbedding(blob)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = deserializeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNormalizeMetadata(t *testing.T) {
	md, err := NormalizeMetadata(Metadata{"i": 3, "f": float32(1.5), "s": "x", "b": false})
	require.NoError(t, err)
	assert.Equal(t, Metadata{"i": int64(3), "f": 1.5, "s": "x", "b": false}, md)

	_, err = NormalizeMetadata(Metadata{"list": []string{"a"}})
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	_, err = NormalizeMetadata(Metadata{"": "x"})
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	md, err = NormalizeMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, md)
}

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func createTestCollection(t *testing.T, store *SQLiteStore, name string) *CollectionRecord {
	t.Helper()

	c, err := store.CreateCollection(context.Background(), CollectionInput{
		Name:              name,
		EmbeddingProvider: "local",
		EmbeddingModel:    "hash-4",
	})
	require.NoError(t, err)
	return c
}

// testVector returns a distinct 4-dimensional unit vector for seed.
func testVector(seed int) []float32 {
	v := make([]float32, 4)
	for i := range v {
		v[i] = float32(math.Sin(float64(seed*(i+1)) + 0.5))
	}
	return normalizeVector(v)
}

// normalizeVector normalizes a vector to unit length (for testing).
func normalizeVector(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	norm := float32(math.Sqrt(float64(sum)))
	result := make([]float32, len(v))
	for i, x := range v {
		result[i] = x / norm
	}
	return result
}
