package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/loader"
)

func writeCorpusFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestCrawler(t *testing.T, root string) (*Crawler, *Queue) {
	t.Helper()
	q := NewQueue()
	c := NewCrawler(CrawlerConfig{
		Root:       root,
		Interval:   time.Hour,
		IgnoreFile: ".corpusignore",
	}, q, loader.New(0, 0), zap.NewNop())
	return c, q
}

func drainQueue(t *testing.T, q *Queue) []WorkItem {
	t.Helper()
	var items []WorkItem
	for q.Len() > 0 {
		item, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		items = append(items, item)
	}
	return items
}

func filePaths(items []WorkItem) []string {
	var paths []string
	for _, item := range items {
		if item.Type == EventTypeFile {
			paths = append(paths, item.Path)
		}
	}
	return paths
}

func TestCrawler_RunOnce(t *testing.T) {
	root := t.TempDir()
	a := writeCorpusFile(t, root, "a.txt", "alpha document")
	b := writeCorpusFile(t, root, "sub/b.md", "# beta")
	writeCorpusFile(t, root, "unsupported.bin", "binary")
	writeCorpusFile(t, root, ".git/config.txt", "hidden")
	writeCorpusFile(t, root, "node_modules/pkg/readme.md", "dep docs")

	c, q := newTestCrawler(t, root)
	require.NoError(t, c.RunOnce(context.Background()))

	items := drainQueue(t, q)
	require.NotEmpty(t, items)

	last := items[len(items)-1]
	require.Equal(t, EventTypePurge, last.Type)
	assert.ElementsMatch(t, []string{a, b}, last.ExistingFilePaths)

	assert.ElementsMatch(t, []string{a, b}, filePaths(items))
	for _, item := range items[:len(items)-1] {
		assert.Equal(t, EventTypeFile, item.Type)
		assert.NotEmpty(t, item.FileID)
	}
}

func TestCrawler_RunOnce_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeCorpusFile(t, root, ".corpusignore", "drafts/\nsecret.txt\n")
	writeCorpusFile(t, root, "drafts/wip.txt", "draft")
	writeCorpusFile(t, root, "secret.txt", "top")
	writeCorpusFile(t, root, "deep/nested/secret.txt", "also top")
	keep := writeCorpusFile(t, root, "keep.txt", "keep me")

	c, q := newTestCrawler(t, root)
	require.NoError(t, c.RunOnce(context.Background()))

	items := drainQueue(t, q)
	assert.Equal(t, []string{keep}, filePaths(items))

	last := items[len(items)-1]
	require.Equal(t, EventTypePurge, last.Type)
	assert.Equal(t, []string{keep}, last.ExistingFilePaths)
}

func TestCrawler_RunOnce_EmptyRoot(t *testing.T) {
	c, q := newTestCrawler(t, t.TempDir())
	require.NoError(t, c.RunOnce(context.Background()))

	items := drainQueue(t, q)
	require.Len(t, items, 1)
	assert.Equal(t, EventTypePurge, items[0].Type)
	assert.Empty(t, items[0].ExistingFilePaths)
}

func TestCrawler_RunOnce_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")

	c, q := newTestCrawler(t, root)
	require.Error(t, c.RunOnce(context.Background()))

	// A failed walk emits nothing, in particular no purge.
	assert.Equal(t, 0, q.Len())
}

func TestCrawler_RunOnce_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeCorpusFile(t, root, "a.txt", "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, q := newTestCrawler(t, root)
	require.ErrorIs(t, c.RunOnce(ctx), context.Canceled)
	assert.Equal(t, 0, q.Len())
}

func TestCrawler_RunOnce_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := writeCorpusFile(t, root, "real.txt", "content")
	require.NoError(t, os.Symlink(target, filepath.Join(root, "link.txt")))

	c, q := newTestCrawler(t, root)
	require.NoError(t, c.RunOnce(context.Background()))

	items := drainQueue(t, q)
	assert.Equal(t, []string{target}, filePaths(items))
}

func TestCrawler_FileEventFields(t *testing.T) {
	root := t.TempDir()
	path := writeCorpusFile(t, root, "a.txt", "alpha")

	mtime := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	q := NewQueue()
	c := NewCrawler(CrawlerConfig{
		Root:     root,
		TenantID: "acme",
	}, q, loader.New(0, 0), zap.NewNop())
	require.NoError(t, c.RunOnce(context.Background()))

	items := drainQueue(t, q)
	require.Len(t, items, 2)

	file := items[0]
	assert.Equal(t, EventTypeFile, file.Type)
	assert.Equal(t, path, file.Path)
	assert.Equal(t, FileID(path), file.FileID)
	assert.Equal(t, mtime.Unix(), file.LastUpdatedSeconds)
	assert.Equal(t, "acme", file.TenantID)

	assert.Equal(t, "acme", items[1].TenantID)
}

func TestCrawler_StartStop(t *testing.T) {
	root := t.TempDir()
	writeCorpusFile(t, root, "a.txt", "alpha")

	c, q := newTestCrawler(t, root)
	c.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for q.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.GreaterOrEqual(t, q.Len(), 2, "initial crawl pass did not produce events")

	c.Stop()
	c.Stop()
}
