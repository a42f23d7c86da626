// Package pool maps corpus file paths to retrieval pools and pools to
// vector store collections.
//
// A pool is the first directory segment under the watch root: files in
// `work/...` belong to pool "work", files at the root belong to "default".
// Pool names feed collection names, so they are sanitized to the collection
// naming rules before use.
package pool

import (
	"path/filepath"
	"strings"
)

// DefaultPool is the pool for files that sit directly under the watch root.
const DefaultPool = "default"

// maxPoolLen caps sanitized pool names to the collection name limit.
const maxPoolLen = 64

// FromPath extracts the pool from a root-relative path. Anything without
// a directory component maps to DefaultPool.
func FromPath(relPath string) string {
	p := strings.TrimLeft(filepath.ToSlash(relPath), "/")
	if p == "" {
		return DefaultPool
	}
	if i := strings.Index(p, "/"); i > 0 {
		return p[:i]
	}
	return DefaultPool
}

// Sanitize normalizes a pool name to lowercase [a-z0-9_], capped at 64
// characters. Never returns an empty string.
func Sanitize(name string) string {
	lower := strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	s := b.String()
	if len(s) > maxPoolLen {
		s = s[:maxPoolLen]
	}
	if s == "" {
		return DefaultPool
	}
	return s
}

// Router resolves pools to vector store collection names.
type Router struct {
	defaultCollection string
}

// NewRouter creates a router. defaultCollection backs the "default" pool.
func NewRouter(defaultCollection string) *Router {
	return &Router{defaultCollection: defaultCollection}
}

// PoolForPath returns the sanitized pool for a root-relative path.
func (r *Router) PoolForPath(relPath string) string {
	return Sanitize(FromPath(relPath))
}

// CollectionFor maps a pool to its collection name. The default pool uses
// the configured default collection; every other pool is its own sanitized
// name.
func (r *Router) CollectionFor(pool string) string {
	sanitized := Sanitize(pool)
	if sanitized == DefaultPool {
		return r.defaultCollection
	}
	return sanitized
}
