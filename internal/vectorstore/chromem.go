// Package vectorstore stores and searches embedded document chunks.
package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("corpusd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ChromemStore implements the Store interface using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external service, persisted to gob files.
// It is the default backend because it makes a single-binary install
// work with no setup.
//
// chromem has no payload indexes and no server-side score cutoff, so
// EnsureCollection skips indexing and Search filters by threshold
// client-side. Deletes scan metadata, which is fine at the document
// counts a personal corpus reaches.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger

	// vectorSizes remembers the dimension passed to EnsureCollection,
	// keyed by collection name. chromem does not expose it.
	vectorSizes sync.Map
}

// NewChromemStore creates a ChromemStore persisting under config.Path.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("%w: storage path required", ErrInvalidConfig)
	}

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	// Stored chunks can hold private file content, keep the dir owner-only.
	if err := os.MkdirAll(expandedPath, 0700); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	store := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
	)

	return store, nil
}

// expandChromemPath expands ~ to the home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc adapts the Embedder interface to chromem's callback.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// EnsureCollection creates the collection if it does not exist.
// chromem filters metadata by exact match without indexes, so there is
// no file_path index to set up.
func (s *ChromemStore) EnsureCollection(ctx context.Context, name string, vectorSize int) (err error) {
	start := time.Now()
	defer func() { observeOperation("chromem", "ensure_collection", start, err) }()

	_, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("vector_size", vectorSize),
	)

	if err = ValidateCollectionName(name); err != nil {
		return err
	}
	if vectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive, got %d", ErrInvalidConfig, vectorSize)
	}

	// Passing the embedding func matters: chromem falls back to its
	// OpenAI default when given nil for a persisted collection.
	if _, err = s.db.GetOrCreateCollection(name, nil, s.embeddingFunc()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("getting/creating collection %s: %w", name, err)
	}

	s.vectorSizes.Store(name, vectorSize)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// AddDocuments embeds and stores a batch of chunks. Every chunk gets a
// fresh random UUID document ID. The collection must already exist.
func (s *ChromemStore) AddDocuments(ctx context.Context, collection string, docs []Document) (ids []string, err error) {
	start := time.Now()
	defer func() { observeOperation("chromem", "add_documents", start, err) }()

	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	coll := s.db.GetCollection(collection, s.embeddingFunc())
	if coll == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	// Batch through the embedder once instead of letting chromem embed
	// document by document.
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(docs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(embeddings), len(docs))
	}

	chromemDocs := make([]chromem.Document, len(docs))
	ids = make([]string, len(docs))

	for i, doc := range docs {
		ids[i] = uuid.New().String()
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  metadataToStrings(doc.Metadata),
			Embedding: embeddings[i],
		}
	}

	// Concurrency of 1: embeddings are already computed.
	if err = coll.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents to collection %s: %w", collection, err)
	}

	documentsAdded.WithLabelValues("chromem").Add(float64(len(ids)))
	span.SetAttributes(attribute.Int("documents_added", len(ids)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added documents to chromem",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// DeleteByPaths removes every document whose file_path metadata matches
// one of the given paths.
func (s *ChromemStore) DeleteByPaths(ctx context.Context, collection string, paths []string) (err error) {
	start := time.Now()
	defer func() { observeOperation("chromem", "delete_by_paths", start, err) }()

	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByPaths")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("path_count", len(paths)),
	)

	if len(paths) == 0 {
		return nil
	}
	if err = ValidateCollectionName(collection); err != nil {
		return err
	}

	coll := s.db.GetCollection(collection, s.embeddingFunc())
	if coll == nil {
		span.SetStatus(codes.Error, "collection not found")
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// chromem deletes by metadata match, one where-clause per path.
	var failed []string
	for _, path := range paths {
		where := map[string]string{payloadPathKey: path}
		if delErr := coll.Delete(ctx, where, nil); delErr != nil {
			span.RecordError(delErr)
			s.logger.Error("failed to delete documents for path",
				zap.String("collection", collection),
				zap.String("path", path),
				zap.Error(delErr),
			)
			failed = append(failed, path)
		}
	}

	if len(failed) > 0 {
		span.SetStatus(codes.Error, "partial deletion failure")
		return fmt.Errorf("failed to delete documents for %d of %d paths: %v", len(failed), len(paths), failed)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search performs similarity search in a collection. chromem has no
// server-side threshold, so results are filtered here.
func (s *ChromemStore) Search(ctx context.Context, collection, query string, topK int, scoreThreshold float32, filters map[string]any) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { observeOperation("chromem", "search", start, err) }()

	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", topK),
		attribute.Float64("score_threshold", float64(scoreThreshold)),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	coll := s.db.GetCollection(collection, s.embeddingFunc())
	if coll == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// chromem requires nResults <= document count.
	docCount := coll.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if topK > docCount {
		topK = docCount
	}

	where := metadataToStrings(filters)

	hits, err := coll.Query(ctx, query, topK, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	results = make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < scoreThreshold {
			continue
		}
		results = append(results, SearchResult{
			ID:       hit.ID,
			Content:  hit.Content,
			Score:    hit.Similarity,
			Metadata: metadataFromStrings(hit.Metadata),
		})
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("searched chromem collection",
		zap.String("collection", collection),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// CollectionExists checks if a collection exists.
func (s *ChromemStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.CollectionExists")
	defer span.End()

	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}

	coll := s.db.GetCollection(name, s.embeddingFunc())
	span.SetStatus(codes.Ok, "success")
	return coll != nil, nil
}

// ListCollections returns all collection names.
func (s *ChromemStore) ListCollections(ctx context.Context) ([]string, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.ListCollections")
	defer span.End()

	collections := s.db.ListCollections()
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}

	span.SetAttributes(attribute.Int("collection_count", len(names)))
	span.SetStatus(codes.Ok, "success")
	return names, nil
}

// GetCollectionInfo returns metadata about a collection. VectorSize is
// only known for collections that went through EnsureCollection in this
// process.
func (s *ChromemStore) GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.GetCollectionInfo")
	defer span.End()

	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	coll := s.db.GetCollection(name, s.embeddingFunc())
	if coll == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}

	info := &CollectionInfo{
		Name:       name,
		PointCount: coll.Count(),
	}
	if size, ok := s.vectorSizes.Load(name); ok {
		info.VectorSize = size.(int)
	}

	span.SetAttributes(attribute.Int("point_count", info.PointCount))
	span.SetStatus(codes.Ok, "success")
	return info, nil
}

// Close closes the ChromemStore. chromem persists on every write, so
// there is nothing to flush.
func (s *ChromemStore) Close() error {
	return nil
}

// metadataToStrings converts metadata values to chromem's string map.
func metadataToStrings(metadata map[string]any) map[string]string {
	if metadata == nil {
		return nil
	}

	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			result[k] = val
		case int:
			result[k] = fmt.Sprintf("%d", val)
		case int64:
			result[k] = fmt.Sprintf("%d", val)
		case float64:
			result[k] = fmt.Sprintf("%f", val)
		case bool:
			result[k] = fmt.Sprintf("%t", val)
		default:
			result[k] = fmt.Sprintf("%v", val)
		}
	}
	return result
}

// metadataFromStrings widens chromem's string map back to metadata.
func metadataFromStrings(metadata map[string]string) map[string]any {
	if metadata == nil {
		return nil
	}

	result := make(map[string]any, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
