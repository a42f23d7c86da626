// Package vectorstore stores and searches embedded document chunks.
package vectorstore

// Document is a chunk of text to embed and store.
//
// Point IDs are assigned by the store at write time, so a Document
// carries no ID of its own.
type Document struct {
	// Content is the chunk text.
	Content string

	// Metadata is attached to the stored point. The indexer always sets
	// file_path; values may be string, int, int64, float64, or bool.
	Metadata map[string]any
}

// SearchResult is a single similarity search hit.
type SearchResult struct {
	// ID is the point ID assigned at write time.
	ID string

	// Content is the stored chunk text.
	Content string

	// Score is the cosine similarity to the query, higher is better.
	Score float32

	// Metadata holds the payload stored with the chunk.
	Metadata map[string]any
}

// CollectionInfo describes a collection.
type CollectionInfo struct {
	Name       string
	PointCount int
	// VectorSize is the embedding dimension, or 0 when the backend does
	// not report it.
	VectorSize int
}
