package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var travelPolicies = AddRequest{
	IDs: []string{"flight_policy_01", "hotel_policy_01", "rental_car_policy_01", "flight_policy_02"},
	Documents: []string{
		"For domestic flights, employees must book economy class tickets. Business class is only permitted for international flights over 8 hours.",
		"Employees can book hotels up to a maximum of $250 per night in major cities. A list of preferred hotel partners is available.",
		"A mid-size sedan is the standard for car rentals. Upgrades require manager approval. Always select the company's insurance option.",
		"All flights, regardless of destination, must be booked through the official company travel portal, 'Concur'.",
	},
	Metadatas: []Metadata{
		{"policy_type": "flights"},
		{"policy_type": "hotels"},
		{"policy_type": "rental_cars"},
		{"policy_type": "flights", "requires_portal": "True"},
	},
}

func newTravelCollection(t *testing.T) *Collection {
	t.Helper()

	c := newTestClient(t)
	col, err := c.GetOrCreateCollection(context.Background(), "travel_policies")
	require.NoError(t, err)

	res, err := col.Add(context.Background(), travelPolicies)
	require.NoError(t, err)
	require.Len(t, res.Added, 4)
	return col
}

func TestAddValidation(t *testing.T) {
	col := newTravelCollection(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  AddRequest
		want error
	}{
		{"no ids", AddRequest{}, ErrInvalidID},
		{"fewer documents", AddRequest{IDs: []string{"a", "b"}, Documents: []string{"x"}}, ErrLengthMismatch},
		{"metadata length", AddRequest{IDs: []string{"a"}, Documents: []string{"x"}, Metadatas: []Metadata{{}, {}}}, ErrLengthMismatch},
		{"empty id", AddRequest{IDs: []string{""}, Documents: []string{"x"}}, ErrInvalidID},
		{"duplicate id", AddRequest{IDs: []string{"a", "a"}, Documents: []string{"x", "y"}}, ErrDuplicateID},
		{"nested metadata", AddRequest{IDs: []string{"a"}, Documents: []string{"x"}, Metadatas: []Metadata{{"tags": []string{"x"}}}}, ErrInvalidMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := col.Add(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)

			assert.ErrorIs(t, col.Upsert(ctx, tt.req), tt.want)
		})
	}

	count, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestAddSkipsExistingIDs(t *testing.T) {
	col := newTravelCollection(t)
	ctx := context.Background()

	res, err := col.Add(ctx, AddRequest{
		IDs:       []string{"hotel_policy_01", "train_policy_01"},
		Documents: []string{"replacement text", "Train travel is encouraged for trips under 4 hours."},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"train_policy_01"}, res.Added)
	assert.Equal(t, []string{"hotel_policy_01"}, res.Skipped)

	docs, err := col.Get(ctx, GetRequest{IDs: []string{"hotel_policy_01"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, travelPolicies.Documents[1], docs[0].Content)
}

func TestQueryExactTextIsNearest(t *testing.T) {
	col := newTravelCollection(t)
	ctx := context.Background()

	for i, text := range travelPolicies.Documents {
		results, err := col.Query(ctx, QueryRequest{Texts: []string{text}, NResults: 1})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Len(t, results[0].Matches, 1)

		m := results[0].Matches[0]
		assert.Equal(t, travelPolicies.IDs[i], m.ID)
		assert.InDelta(t, 0.0, m.Distance, 1e-4)
		assert.Equal(t, text, m.Document)
	}
}

func TestQueryGroupsAndOrdering(t *testing.T) {
	col := newTravelCollection(t)
	ctx := context.Background()

	results, err := col.Query(ctx, QueryRequest{
		Texts:    []string{"What is the policy for international flights?", travelPolicies.Documents[1]},
		NResults: 2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, group := range results {
		require.Len(t, group.Matches, 2)
		assert.LessOrEqual(t, group.Matches[0].Distance, group.Matches[1].Distance)
	}
	assert.Equal(t, "What is the policy for international flights?", results[0].Query)
	assert.Equal(t, "hotel_policy_01", results[1].Matches[0].ID)

	all, err := col.Query(ctx, QueryRequest{Texts: []string{"anything"}})
	require.NoError(t, err)
	assert.Len(t, all[0].Matches, 4)

	_, err = col.Query(ctx, QueryRequest{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestQueryWhere(t *testing.T) {
	col := newTravelCollection(t)
	ctx := context.Background()

	results, err := col.Query(ctx, QueryRequest{
		Texts: []string{"Which car can I rent?"},
		Where: Metadata{"policy_type": "flights"},
	})
	require.NoError(t, err)
	require.Len(t, results[0].Matches, 2)
	for _, m := range results[0].Matches {
		assert.Equal(t, "flights", m.Metadata["policy_type"])
	}

	results, err = col.Query(ctx, QueryRequest{
		Texts: []string{"portal"},
		Where: Metadata{"requires_portal": "True"},
	})
	require.NoError(t, err)
	require.Len(t, results[0].Matches, 1)
	assert.Equal(t, "flight_policy_02", results[0].Matches[0].ID)
}

func TestQueryDoesNotMutate(t *testing.T) {
	col := newTravelCollection(t)
	ctx := context.Background()

	before, err := col.Get(ctx, GetRequest{})
	require.NoError(t, err)

	_, err = col.Query(ctx, QueryRequest{Texts: []string{"flights", "hotels"}, NResults: 3})
	require.NoError(t, err)

	after, err := col.Get(ctx, GetRequest{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpsertReplacesAndInserts(t *testing.T) {
	col := newTravelCollection(t)
	ctx := context.Background()

	update := AddRequest{
		IDs: []string{"hotel_policy_01", "train_policy_01"},
		Documents: []string{
			"Employees can book hotels up to a maximum of $300 per night. See the portal for preferred partners.",
			"Train travel is encouraged for trips under 4 hours. Business class tickets are approved for all train journeys.",
		},
		Metadatas: []Metadata{
			{"policy_type": "hotels", "max_spend": 300},
			{"policy_type": "train", "last_updated": "2025-10-15"},
		},
	}
	require.NoError(t, col.Upsert(ctx, update))

	count, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	first, err := col.Get(ctx, GetRequest{IncludeEmbeddings: true})
	require.NoError(t, err)

	// Identical input leaves the same state
	require.NoError(t, col.Upsert(ctx, update))
	second, err := col.Get(ctx, GetRequest{IncludeEmbeddings: true})
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].Metadata, second[i].Metadata)
		assert.Equal(t, first[i].Embedding, second[i].Embedding)
	}

	results, err := col.Query(ctx, QueryRequest{Texts: []string{update.Documents[0]}, NResults: 1})
	require.NoError(t, err)
	m := results[0].Matches[0]
	assert.Equal(t, "hotel_policy_01", m.ID)
	assert.Equal(t, update.Documents[0], m.Document)
	assert.Equal(t, int64(300), m.Metadata["max_spend"])
	assert.InDelta(t, 0.0, m.Distance, 1e-4)
}

func TestDeleteExcludesFromQuery(t *testing.T) {
	col := newTravelCollection(t)
	ctx := context.Background()

	n, err := col.Delete(ctx, "flight_policy_01", "not_there")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = col.Delete(ctx, "flight_policy_01")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	results, err := col.Query(ctx, QueryRequest{Texts: []string{travelPolicies.Documents[0]}})
	require.NoError(t, err)
	for _, m := range results[0].Matches {
		assert.NotEqual(t, "flight_policy_01", m.ID)
	}
	assert.Len(t, results[0].Matches, 3)
}

func TestDeleteWhere(t *testing.T) {
	col := newTravelCollection(t)
	ctx := context.Background()

	n, err := col.DeleteWhere(ctx, Metadata{"policy_type": "flights"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReplace(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	emb := &mockEmbedder{model: "chunks", dimensions: 4}
	col, err := c.CreateCollection(ctx, "notes", WithEmbeddingFunction(emb))
	require.NoError(t, err)

	source := Metadata{"source": "a.md"}
	_, err = col.Add(ctx, AddRequest{
		IDs:       []string{"a.md#0", "a.md#1", "a.md#2"},
		Documents: []string{"old 0", "old 1", "old 2"},
		Metadatas: []Metadata{source, source, source},
	})
	require.NoError(t, err)

	replacement := AddRequest{
		IDs:       []string{"a.md#0", "a.md#1"},
		Documents: []string{"new 0", "new 1"},
		Metadatas: []Metadata{source, source},
	}

	// Second embedding batch fails; nothing may change
	emb.batches, emb.failAfter = 0, 1
	err = col.Replace(ctx, source, replacement, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding backend unavailable")

	docs, err := col.Get(ctx, GetRequest{Where: source})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "old 0", docs[0].Content)
	assert.Equal(t, "old 2", docs[2].Content)

	emb.failAfter = 0
	require.NoError(t, col.Replace(ctx, source, replacement, 1))

	docs, err = col.Get(ctx, GetRequest{Where: source})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "new 0", docs[0].Content)
	assert.Equal(t, "new 1", docs[1].Content)

	require.NoError(t, col.Replace(ctx, source, AddRequest{}, 0))
	count, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = col.Replace(ctx, source, AddRequest{IDs: []string{"a", "a"}, Documents: []string{"x", "y"}}, 0)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestQueryWhereBeyondNearestNeighbours(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	col, err := c.GetOrCreateCollection(ctx, "crowded")
	require.NoError(t, err)

	var req AddRequest
	for i := range 40 {
		req.IDs = append(req.IDs, fmt.Sprintf("flight_%02d", i))
		req.Documents = append(req.Documents, fmt.Sprintf("Economy class flights must be booked early, rule %d.", i))
		req.Metadatas = append(req.Metadatas, Metadata{"tag": "a"})
	}
	for i := range 3 {
		req.IDs = append(req.IDs, fmt.Sprintf("garden_%d", i))
		req.Documents = append(req.Documents, fmt.Sprintf("Water the tomato plants in bed %d every morning.", i))
		req.Metadatas = append(req.Metadatas, Metadata{"tag": "b"})
	}
	_, err = col.Add(ctx, req)
	require.NoError(t, err)

	results, err := col.Query(ctx, QueryRequest{
		Texts:    []string{"Economy class flights must be booked early, rule 7."},
		NResults: 2,
		Where:    Metadata{"tag": "b"},
	})
	require.NoError(t, err)
	require.Len(t, results[0].Matches, 2)
	for _, m := range results[0].Matches {
		assert.Equal(t, "b", m.Metadata["tag"])
	}
	assert.LessOrEqual(t, results[0].Matches[0].Distance, results[0].Matches[1].Distance)
}

func TestGetAndPeek(t *testing.T) {
	col := newTravelCollection(t)
	ctx := context.Background()

	docs, err := col.Get(ctx, GetRequest{Where: Metadata{"policy_type": "flights"}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "flight_policy_01", docs[0].ID)
	assert.Empty(t, docs[0].Embedding)

	peek, err := col.Peek(ctx, 2)
	require.NoError(t, err)
	require.Len(t, peek, 2)
	assert.Equal(t, "flight_policy_01", peek[0].ID)
	assert.Equal(t, "hotel_policy_01", peek[1].ID)

	peek, err = col.Peek(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, peek, 4)
}

func TestModify(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	col, err := c.CreateCollection(ctx, "employee_handbook")
	require.NoError(t, err)
	_, err = c.CreateCollection(ctx, "company_benefits")
	require.NoError(t, err)
	_, err = col.Add(ctx, AddRequest{IDs: []string{"h1"}, Documents: []string{"Dress code is business casual."}})
	require.NoError(t, err)

	newName := "employee_guidelines"
	require.NoError(t, col.Modify(ctx, ModifyRequest{Name: &newName, Metadata: Metadata{"version": 2}}))
	assert.Equal(t, "employee_guidelines", col.Name())
	assert.Equal(t, int64(2), col.Metadata()["version"])

	renamed, err := c.GetCollection(ctx, "employee_guidelines")
	require.NoError(t, err)
	count, err := renamed.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = c.GetCollection(ctx, "employee_handbook")
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	taken := "company_benefits"
	assert.ErrorIs(t, col.Modify(ctx, ModifyRequest{Name: &taken}), ErrCollectionExists)

	bad := "!!"
	assert.ErrorIs(t, col.Modify(ctx, ModifyRequest{Name: &bad}), ErrInvalidName)

	info, err := col.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "employee_guidelines", info.Name)
	assert.Equal(t, 1, info.Count)
}

func TestEmbeddingErrorsAreWrapped(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	failing := &mockEmbedder{model: "broken", dimensions: 4, err: errors.New("401 unauthorized")}
	col, err := c.CreateCollection(ctx, "remote", WithEmbeddingFunction(failing))
	require.NoError(t, err)

	_, err = col.Add(ctx, AddRequest{IDs: []string{"a"}, Documents: []string{"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 unauthorized")

	_, err = col.Query(ctx, QueryRequest{Texts: []string{"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestDimensionMismatchAcrossFunctions(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	small := &mockEmbedder{model: "same-name", dimensions: 4}
	col, err := c.CreateCollection(ctx, "dims", WithEmbeddingFunction(small))
	require.NoError(t, err)
	_, err = col.Add(ctx, AddRequest{IDs: []string{"a"}, Documents: []string{"x"}})
	require.NoError(t, err)

	// Same provider/model but a different vector length
	big := &mockEmbedder{model: "same-name", dimensions: 8}
	col2, err := c.GetCollection(ctx, "dims", WithEmbeddingFunction(big))
	require.NoError(t, err)
	_, err = col2.Add(ctx, AddRequest{IDs: []string{"b"}, Documents: []string{"y"}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
