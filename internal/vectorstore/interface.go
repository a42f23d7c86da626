// Package vectorstore stores and searches embedded document chunks.
//
// Collections map one-to-one to pools. Every stored chunk carries a
// file_path payload entry so all chunks of a file can be replaced or
// purged together without touching neighboring files.
//
// Two backends are supported:
//   - chromem: embedded pure-Go store, persisted to disk, zero setup
//   - qdrant: external server over native gRPC (port 6334)
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound indicates the requested collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates an empty document batch was provided.
	ErrEmptyDocuments = errors.New("documents cannot be empty")

	// ErrConnectionFailed indicates connection to the backend failed.
	ErrConnectionFailed = errors.New("connection to vector store failed")

	// ErrEmbeddingFailed indicates embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrInvalidCollectionName indicates a collection name failed validation.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Store is the interface for vector storage backends.
type Store interface {
	// EnsureCollection creates the collection if it does not exist and
	// makes sure the file_path payload field is indexed for keyword
	// matching. Safe to call repeatedly; existing collections are left
	// untouched.
	EnsureCollection(ctx context.Context, name string, vectorSize int) error

	// AddDocuments embeds and stores a batch of chunks in the given
	// collection. Every chunk is assigned a fresh random UUID point ID;
	// the assigned IDs are returned in input order. The collection must
	// already exist.
	AddDocuments(ctx context.Context, collection string, docs []Document) ([]string, error)

	// DeleteByPaths removes all chunks whose file_path payload matches
	// any of the given paths. An empty path list is a no-op.
	DeleteByPaths(ctx context.Context, collection string, paths []string) error

	// Search performs similarity search over a collection. Results below
	// scoreThreshold are dropped; a threshold of 0 disables the cutoff.
	// Filters match payload fields exactly (keyword semantics).
	Search(ctx context.Context, collection, query string, topK int, scoreThreshold float32, filters map[string]any) ([]SearchResult, error)

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns point count and vector size for a
	// collection. Returns ErrCollectionNotFound if it does not exist.
	GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// Close releases backend resources.
	Close() error
}

// Embedder generates vector embeddings from text.
//
// Implementations must be safe for concurrent use and must produce
// vectors of a fixed dimension matching the collection they feed.
type Embedder interface {
	// EmbedDocuments generates embeddings for a batch of texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
