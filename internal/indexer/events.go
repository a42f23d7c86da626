// Package indexer turns the watch root into vector store contents: a
// crawler walks the tree and feeds a work queue, a single consumer drains
// it into per-pool collections and the file catalog.
package indexer

import (
	"path/filepath"

	"github.com/google/uuid"
)

// EventType discriminates queued work items.
type EventType string

const (
	// EventTypeFile asks the consumer to (re)index one file.
	EventTypeFile EventType = "file"
	// EventTypePurge asks the consumer to drop state for deleted files.
	EventTypePurge EventType = "purge"
)

// WorkItem is one unit of queued indexing work. File events populate Path,
// FileID, and LastUpdatedSeconds; purge events populate ExistingFilePaths.
type WorkItem struct {
	Type EventType `json:"type"`

	Path               string `json:"path,omitempty"`
	FileID             string `json:"file_id,omitempty"`
	LastUpdatedSeconds int64  `json:"last_updated_seconds,omitempty"`

	// ExistingFilePaths is the full set of supported paths present during
	// the crawl pass that produced this event.
	ExistingFilePaths []string `json:"existing_file_paths,omitempty"`

	TenantID string `json:"tenant_id,omitempty"`
}

// NewFileEvent builds a file work item for one crawled path.
func NewFileEvent(path string, lastUpdatedSeconds int64, tenantID string) WorkItem {
	return WorkItem{
		Type:               EventTypeFile,
		Path:               path,
		FileID:             FileID(path),
		LastUpdatedSeconds: lastUpdatedSeconds,
		TenantID:           tenantID,
	}
}

// NewPurgeEvent builds a purge work item carrying the paths seen by a
// completed crawl pass.
func NewPurgeEvent(existingFilePaths []string, tenantID string) WorkItem {
	return WorkItem{
		Type:              EventTypePurge,
		ExistingFilePaths: existingFilePaths,
		TenantID:          tenantID,
	}
}

// FileID derives the stable identifier for a corpus file from its path.
// The same path always yields the same ID.
func FileID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(path))).String()
}
