package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickcecere/lvec/internal/client"
)

const (
	flightDoc = "For domestic flights, employees must book economy class tickets."
	hotelDoc  = "Employees can book hotels up to a maximum of $250 per night in major cities."
)

// execute runs the command tree against an isolated store directory.
func execute(t *testing.T, db string, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", db}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func addPolicies(t *testing.T, db string) {
	t.Helper()
	out, err := execute(t, db, "", "add", "travel_policies",
		"--id", "flight_policy_01", "--doc", flightDoc,
		"--id", "hotel_policy_01", "--doc", hotelDoc,
		"--meta", "policy_type=travel",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Added 2 document(s) to travel_policies")
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	out, err := execute(t, t.TempDir(), "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lvec 1.2.3")
	assert.Contains(t, out, "commit: abc")
}

func TestAddCountAndQuery(t *testing.T) {
	db := t.TempDir()
	addPolicies(t, db)

	out, err := execute(t, db, "", "count", "travel_policies")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = execute(t, db, "", "query", "travel_policies", hotelDoc, "-n", "1", "--json")
	require.NoError(t, err)

	var results []client.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	require.Len(t, results[0].Matches, 1)
	assert.Equal(t, "hotel_policy_01", results[0].Matches[0].ID)
	assert.Equal(t, "travel", results[0].Matches[0].Metadata["policy_type"])

	out, err = execute(t, db, "", "query", "travel_policies", flightDoc, "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "1. flight_policy_01")
	assert.Contains(t, out, "(distance ")
}

func TestAddSkipsExistingIDs(t *testing.T) {
	db := t.TempDir()
	addPolicies(t, db)

	out, err := execute(t, db, "", "add", "travel_policies", "--id", "flight_policy_01", "--doc", "replacement")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 0 document(s)")
	assert.Contains(t, out, "Skipped existing IDs: flight_policy_01")

	out, err = execute(t, db, "", "upsert", "travel_policies", "--id", "flight_policy_01", "--doc", "replacement")
	require.NoError(t, err)
	assert.Contains(t, out, "Upserted 1 document(s)")

	out, err = execute(t, db, "", "get", "travel_policies", "--id", "flight_policy_01", "--json")
	require.NoError(t, err)
	var docs []client.Document
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "replacement", docs[0].Content)
}

func TestAddValidation(t *testing.T) {
	db := t.TempDir()

	_, err := execute(t, db, "", "add", "travel_policies", "--id", "a1", "--id", "a2", "--doc", "only one")
	assert.ErrorIs(t, err, client.ErrLengthMismatch)

	_, err = execute(t, db, "", "add", "travel_policies", "--id", "a1", "--doc", "text", "--meta", "novalue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected key=value")
}

func TestGetWhereAndDelete(t *testing.T) {
	db := t.TempDir()
	addPolicies(t, db)
	_, err := execute(t, db, "", "add", "travel_policies", "--id", "train_policy_01", "--doc", "Trains are encouraged.", "--meta", "policy_type=train")
	require.NoError(t, err)

	out, err := execute(t, db, "", "get", "travel_policies", "--where", "policy_type=train", "--json")
	require.NoError(t, err)
	var docs []client.Document
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "train_policy_01", docs[0].ID)

	out, err = execute(t, db, "", "delete", "travel_policies", "--id", "train_policy_01")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 document(s)")

	out, err = execute(t, db, "", "delete", "travel_policies", "--where", "policy_type=travel")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 2 document(s)")

	out, err = execute(t, db, "", "count", "travel_policies")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	_, err = execute(t, db, "", "delete", "travel_policies")
	require.Error(t, err)
}

func TestPeek(t *testing.T) {
	db := t.TempDir()
	addPolicies(t, db)

	out, err := execute(t, db, "", "peek", "travel_policies", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "flight_policy_01")
	assert.NotContains(t, out, "hotel_policy_01")
}

func TestMissingCollection(t *testing.T) {
	db := t.TempDir()

	for _, args := range [][]string{
		{"count", "nope_collection"},
		{"query", "nope_collection", "hello"},
		{"collection", "get", "nope_collection"},
		{"collection", "delete", "nope_collection", "-y"},
	} {
		_, err := execute(t, db, "", args...)
		assert.ErrorIs(t, err, client.ErrCollectionNotFound, "args %v", args)
	}
}

func TestCollectionLifecycle(t *testing.T) {
	db := t.TempDir()

	out, err := execute(t, db, "", "collection", "create", "employee_handbook", "--meta", "team=hr")
	require.NoError(t, err)
	assert.Contains(t, out, "Collection employee_handbook ready")
	assert.Contains(t, out, "local/hash-384 (384 dims)")

	_, err = execute(t, db, "", "collection", "create", "employee_handbook")
	assert.ErrorIs(t, err, client.ErrCollectionExists)

	_, err = execute(t, db, "", "collection", "create", "employee_handbook", "--get-or-create")
	assert.NoError(t, err)

	out, err = execute(t, db, "", "collection", "create", "small_vectors", "--provider", "local", "--model", "hash-32")
	require.NoError(t, err)
	assert.Contains(t, out, "local/hash-32 (32 dims)")

	out, err = execute(t, db, "", "collection", "rename", "employee_handbook", "employee_guidelines")
	require.NoError(t, err)
	assert.Contains(t, out, "Renamed employee_handbook to employee_guidelines")

	out, err = execute(t, db, "", "collection", "list", "--json")
	require.NoError(t, err)
	var infos []client.CollectionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "employee_guidelines", infos[0].Name)
	assert.Equal(t, "hr", infos[0].Metadata["team"])
	assert.Equal(t, "small_vectors", infos[1].Name)

	out, err = execute(t, db, "n\n", "collection", "delete", "small_vectors")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled.")

	out, err = execute(t, db, "y\n", "collection", "delete", "small_vectors")
	require.NoError(t, err)
	assert.Contains(t, out, "Collection 'small_vectors' deleted.")

	out, err = execute(t, db, "", "collection", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Collections (1)")
	assert.Contains(t, out, "employee_guidelines")
}

func TestCollectionListEmpty(t *testing.T) {
	out, err := execute(t, t.TempDir(), "", "collection", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No collections found.")
}

func TestEphemeralDoesNotPersist(t *testing.T) {
	db := t.TempDir()

	_, err := execute(t, db, "", "--ephemeral", "collection", "create", "travel_policies")
	require.NoError(t, err)

	out, err := execute(t, db, "", "collection", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No collections found.")
}

func TestTokens(t *testing.T) {
	out, err := execute(t, t.TempDir(), "", "tokens", "Hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 1 tokens (cl100k_base)")
	assert.Contains(t, out, "Estimated cost with text-embedding-3-small: $0.00000002")

	out, err = execute(t, t.TempDir(), "", "tokens", "--model", "unknown-model", "Hello")
	require.NoError(t, err)
	assert.Contains(t, out, "No price known for unknown-model")

	out, err = execute(t, t.TempDir(), "Hello\n", "tokens", "--json")
	require.NoError(t, err)
	var summary struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Total)
}

func TestImport(t *testing.T) {
	db := t.TempDir()
	root := filepath.Join(t.TempDir(), "handbook")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "travel.md"), []byte("# Travel\n\n"+flightDoc+"\n"), 0644))

	out, err := execute(t, db, "", "import", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Importing into handbook")
	assert.Contains(t, out, "Import complete!")
	assert.Contains(t, out, "Imported:  1")

	out, err = execute(t, db, "", "import", root, "--collection", "handbook")
	require.NoError(t, err)
	assert.Contains(t, out, "Unchanged: 1")

	out, err = execute(t, db, "", "count", "handbook")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	_, err = execute(t, db, "", "import", filepath.Join(root, "travel.md"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestImportInvalidDirectoryName(t *testing.T) {
	db := t.TempDir()
	root := filepath.Join(t.TempDir(), "my notes")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "travel.md"), []byte(flightDoc+"\n"), 0644))

	for _, command := range []string{"import", "watch"} {
		_, err := execute(t, db, "", command, root)
		require.Error(t, err, command)
		assert.Contains(t, err.Error(), "--collection", command)
	}

	out, err := execute(t, db, "", "import", root, "--collection", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported:  1")
}

func TestDemoAndGuide(t *testing.T) {
	out, err := execute(t, t.TempDir(), "", "demo", "2", "--dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "STEP 2")

	_, err = execute(t, t.TempDir(), "", "demo", "two")
	assert.Error(t, err)

	_, err = execute(t, t.TempDir(), "", "demo", "9", "--dir", t.TempDir())
	assert.Error(t, err)

	out, err = execute(t, t.TempDir(), "", "guide", "--raw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# lvec"))
}

func TestMcp(t *testing.T) {
	db := t.TempDir()
	addPolicies(t, db)

	in := `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"lvec_list_collections","arguments":{}}}` + "\n"
	out, err := execute(t, db, in, "mcp")
	require.NoError(t, err)
	assert.Contains(t, out, `"id":1`)
	assert.Contains(t, out, "travel_policies")
}

func TestStatusAndConfig(t *testing.T) {
	db := t.TempDir()
	addPolicies(t, db)

	out, err := execute(t, db, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "1 collections, 2 documents")
	assert.Contains(t, out, "travel_policies")
	assert.Contains(t, out, "healthy")

	out, err = execute(t, db, "", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "Path: "+db)

	out, err = execute(t, db, "", "config", "--path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(db, "lvec.sqlite3"))
}

func TestParseMetadata(t *testing.T) {
	md, err := parseMetadata([]string{"policy_type=hotels", "max_spend=300", "rate=0.5", "active=true", "requires_portal=True", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, client.Metadata{
		"policy_type":     "hotels",
		"max_spend":       int64(300),
		"rate":            0.5,
		"active":          true,
		"requires_portal": "True",
		"note":            "a=b",
	}, md)

	md, err = parseMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, md)

	_, err = parseMetadata([]string{"=x"})
	assert.Error(t, err)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "...c/d.md", truncatePath("/a/b/c/d.md", 9))
	assert.Equal(t, "unknown", formatTime(time.Time{}))
	assert.Equal(t, "a=1 b=x", formatMetadata(client.Metadata{"b": "x", "a": int64(1)}))
}
