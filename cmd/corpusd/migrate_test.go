package main

import (
	"compress/gzip"
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestDoc(t *testing.T, path string, doc chromemDocument) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	if filepath.Ext(path) == ".gz" {
		gz := gzip.NewWriter(f)
		require.NoError(t, gob.NewEncoder(gz).Encode(doc))
		require.NoError(t, gz.Close())
		return
	}
	require.NoError(t, gob.NewEncoder(f).Encode(doc))
}

func TestBackfillChromem(t *testing.T) {
	store := t.TempDir()
	collectionDir := filepath.Join(store, "abc12345")
	require.NoError(t, os.MkdirAll(collectionDir, 0755))

	// Collection metadata file must never be touched.
	metadataPath := filepath.Join(collectionDir, "00000000.gob")
	require.NoError(t, os.WriteFile(metadataPath, []byte("metadata"), 0644))

	writeTestDoc(t, filepath.Join(collectionDir, "00000001.gob"), chromemDocument{
		ID:        "doc-plain",
		Content:   "first",
		Metadata:  map[string]string{"file_path": "/corpus/a.txt"},
		Embedding: []float32{0.1, 0.2},
	})
	writeTestDoc(t, filepath.Join(collectionDir, "00000002.gob.gz"), chromemDocument{
		ID:        "doc-compressed",
		Content:   "second",
		Metadata:  map[string]string{"file_path": "/corpus/b.txt"},
		Embedding: []float32{0.3, 0.4},
	})
	writeTestDoc(t, filepath.Join(collectionDir, "00000003.gob"), chromemDocument{
		ID:        "doc-tagged",
		Content:   "third",
		Metadata:  map[string]string{"tenant_id": "existing"},
		Embedding: []float32{0.5, 0.6},
	})

	tagged, err := backfillChromem(store, "acme", false)
	require.NoError(t, err)
	assert.Equal(t, 2, tagged)

	// Untagged docs now carry the tenant, everything else intact.
	doc, err := readChromemDocument(filepath.Join(collectionDir, "00000001.gob"))
	require.NoError(t, err)
	assert.Equal(t, "acme", doc.Metadata["tenant_id"])
	assert.Equal(t, "/corpus/a.txt", doc.Metadata["file_path"])
	assert.Equal(t, "first", doc.Content)
	assert.Equal(t, []float32{0.1, 0.2}, doc.Embedding)

	doc, err = readChromemDocument(filepath.Join(collectionDir, "00000002.gob.gz"))
	require.NoError(t, err)
	assert.Equal(t, "acme", doc.Metadata["tenant_id"])
	assert.Equal(t, "second", doc.Content)

	// Already tagged doc keeps its tenant.
	doc, err = readChromemDocument(filepath.Join(collectionDir, "00000003.gob"))
	require.NoError(t, err)
	assert.Equal(t, "existing", doc.Metadata["tenant_id"])

	raw, err := os.ReadFile(metadataPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("metadata"), raw)

	// Re-running finds nothing left to tag.
	tagged, err = backfillChromem(store, "acme", false)
	require.NoError(t, err)
	assert.Zero(t, tagged)
}

func TestBackfillChromem_DryRun(t *testing.T) {
	store := t.TempDir()
	collectionDir := filepath.Join(store, "abc12345")
	require.NoError(t, os.MkdirAll(collectionDir, 0755))

	docPath := filepath.Join(collectionDir, "00000001.gob")
	writeTestDoc(t, docPath, chromemDocument{
		ID:        "doc",
		Content:   "body",
		Metadata:  map[string]string{"file_path": "/corpus/a.txt"},
		Embedding: []float32{0.1},
	})

	tagged, err := backfillChromem(store, "acme", true)
	require.NoError(t, err)
	assert.Equal(t, 1, tagged)

	doc, err := readChromemDocument(docPath)
	require.NoError(t, err)
	assert.Empty(t, doc.Metadata["tenant_id"])
}

func TestBackfillChromem_MissingStore(t *testing.T) {
	tagged, err := backfillChromem(filepath.Join(t.TempDir(), "nope"), "acme", false)
	require.NoError(t, err)
	assert.Zero(t, tagged)
}

func TestBackfillChromem_NilMetadata(t *testing.T) {
	store := t.TempDir()
	collectionDir := filepath.Join(store, "abc12345")
	require.NoError(t, os.MkdirAll(collectionDir, 0755))

	docPath := filepath.Join(collectionDir, "00000001.gob")
	writeTestDoc(t, docPath, chromemDocument{ID: "doc", Content: "body"})

	tagged, err := backfillChromem(store, "acme", false)
	require.NoError(t, err)
	assert.Equal(t, 1, tagged)

	doc, err := readChromemDocument(docPath)
	require.NoError(t, err)
	assert.Equal(t, "acme", doc.Metadata["tenant_id"])
}

func TestCollectDocFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"00000000.gob", "00000000.gob.gz", "00000001.gob", "00000002.gob.gz", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	files, err := collectDocFiles(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	sort.Strings(names)
	assert.Equal(t, []string{"00000001.gob", "00000002.gob.gz"}, names)
}
