package main

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/corpusd/internal/catalog"
	"github.com/fyrsmithlabs/corpusd/internal/config"
)

// migrateBatchSize is the number of points patched per qdrant round trip.
const migrateBatchSize = 100

var (
	migrateTenant string
	migrateDryRun bool
)

func init() {
	migrateTenantCmd.Flags().StringVar(&migrateTenant, "tenant", "", "Tenant ID to assign to untagged data (required)")
	migrateTenantCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Show what would be tagged without changing anything")

	_ = migrateTenantCmd.MarkFlagRequired("tenant")
}

var migrateTenantCmd = &cobra.Command{
	Use:   "migrate-tenant",
	Short: "Tag pre-tenancy data with a tenant ID",
	Long: `Assign a tenant ID to catalog rows and vector store points that were
indexed before tenant scoping was configured.

Data that already carries a tenant ID is left untouched, so the command
is safe to re-run. Stop the daemon first: the chromem provider is
patched on disk and must not be open elsewhere.

Examples:
  # See how much untagged data exists
  corpusd migrate-tenant --tenant=acme --dry-run

  # Tag it
  corpusd migrate-tenant --tenant=acme`,
	RunE: runMigrateTenant,
}

func runMigrateTenant(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg, err := config.LoadWithFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fmt.Printf("Tenant backfill\n")
	fmt.Printf("  Tenant: %s\n", migrateTenant)
	fmt.Printf("  Vector store: %s\n", cfg.VectorStore.Provider)
	if migrateDryRun {
		fmt.Printf("  Mode: DRY RUN (no changes will be made)\n")
	}
	fmt.Println()

	catalogPath, err := config.ExpandPath(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	cat, err := catalog.New(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	var catalogRows int64
	if migrateDryRun {
		catalogRows, err = cat.CountMissingTenant(ctx)
	} else {
		catalogRows, err = cat.BackfillTenant(ctx, migrateTenant)
	}
	if err != nil {
		return fmt.Errorf("catalog backfill failed: %w", err)
	}
	fmt.Printf("Catalog: %d rows without tenant\n\n", catalogRows)

	var points int
	switch cfg.VectorStore.Provider {
	case "chromem":
		storePath, err := config.ExpandPath(cfg.VectorStore.Chromem.Path)
		if err != nil {
			return fmt.Errorf("failed to resolve chromem path: %w", err)
		}
		n, err := backfillChromem(storePath, migrateTenant, migrateDryRun)
		if err != nil {
			return fmt.Errorf("chromem backfill failed: %w", err)
		}
		points = n
	case "qdrant":
		n, err := backfillQdrant(ctx, cfg.VectorStore.Qdrant, migrateTenant, migrateDryRun)
		if err != nil {
			return fmt.Errorf("qdrant backfill failed: %w", err)
		}
		points = n
	default:
		return fmt.Errorf("unsupported vectorstore provider: %q", cfg.VectorStore.Provider)
	}

	fmt.Printf("\n========================================\n")
	if migrateDryRun {
		fmt.Printf("DRY RUN: would tag %d catalog rows and %d points with tenant %q\n", catalogRows, points, migrateTenant)
	} else {
		fmt.Printf("Backfill complete: %d catalog rows and %d points tagged with tenant %q\n", catalogRows, points, migrateTenant)
	}
	fmt.Printf("========================================\n")

	return nil
}

// chromemDocument mirrors the document struct chromem-go persists per
// gob file. Gob matches fields by name, so order doesn't matter.
type chromemDocument struct {
	ID        string
	Metadata  map[string]string
	Embedding []float32
	Content   string
}

// backfillChromem walks the chromem store directory and stamps the tenant
// into every document gob missing one. Each collection is a directory;
// 00000000.* files hold collection metadata, not documents.
func backfillChromem(storePath, tenant string, dryRun bool) (int, error) {
	entries, err := os.ReadDir(storePath)
	if os.IsNotExist(err) {
		fmt.Printf("No vector store at %s\n", storePath)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading store directory: %w", err)
	}

	var tagged int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		docFiles, err := collectDocFiles(filepath.Join(storePath, entry.Name()))
		if err != nil {
			return tagged, err
		}

		var taggedInCollection int
		for _, docFile := range docFiles {
			doc, err := readChromemDocument(docFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  skipping unreadable %s: %v\n", docFile, err)
				continue
			}
			if doc.Metadata["tenant_id"] != "" {
				continue
			}

			taggedInCollection++
			if dryRun {
				continue
			}

			if doc.Metadata == nil {
				doc.Metadata = make(map[string]string, 1)
			}
			doc.Metadata["tenant_id"] = tenant
			if err := writeChromemDocument(docFile, doc); err != nil {
				return tagged, fmt.Errorf("writing %s: %w", docFile, err)
			}
		}

		fmt.Printf("Collection %s: %d docs without tenant\n", entry.Name(), taggedInCollection)
		tagged += taggedInCollection
	}

	return tagged, nil
}

// collectDocFiles lists the per-document gob files in a collection
// directory, compressed or not, excluding the collection metadata file.
func collectDocFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.gob", "*.gob.gz"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("globbing %s: %w", dir, err)
		}
		files = append(files, matches...)
	}

	docs := files[:0]
	for _, f := range files {
		if strings.HasPrefix(filepath.Base(f), "00000000.") {
			continue
		}
		docs = append(docs, f)
	}
	return docs, nil
}

func readChromemDocument(path string) (*chromemDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}

	var doc chromemDocument
	if err := gob.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func writeChromemDocument(path string, doc *chromemDocument) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(file)
		if err := gob.NewEncoder(gz).Encode(doc); err != nil {
			return err
		}
		return gz.Close()
	}
	return gob.NewEncoder(file).Encode(doc)
}

// backfillQdrant tags every point missing a tenant_id payload field,
// across all collections. Points are patched in scroll batches; each
// SetPayload removes its batch from the is-empty filter, so scrolling
// restarts from the top until the filter matches nothing.
func backfillQdrant(ctx context.Context, qcfg config.QdrantConfig, tenant string, dryRun bool) (int, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   qcfg.Host,
		Port:   qcfg.Port,
		APIKey: qcfg.APIKey.Value(),
		UseTLS: qcfg.UseTLS,
	})
	if err != nil {
		return 0, fmt.Errorf("connecting to qdrant at %s:%d: %w", qcfg.Host, qcfg.Port, err)
	}
	defer client.Close()

	collections, err := client.ListCollections(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing collections: %w", err)
	}

	missingTenant := &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_IsEmpty{
					IsEmpty: &qdrant.IsEmptyCondition{Key: "tenant_id"},
				},
			},
		},
	}

	var tagged int
	for _, collection := range collections {
		if dryRun {
			count, err := client.Count(ctx, &qdrant.CountPoints{
				CollectionName: collection,
				Filter:         missingTenant,
				Exact:          qdrant.PtrOf(true),
			})
			if err != nil {
				return tagged, fmt.Errorf("counting untagged points in %s: %w", collection, err)
			}
			fmt.Printf("Collection %s: %d points without tenant\n", collection, count)
			tagged += int(count)
			continue
		}

		var taggedInCollection int
		for {
			points, err := client.Scroll(ctx, &qdrant.ScrollPoints{
				CollectionName: collection,
				Filter:         missingTenant,
				Limit:          qdrant.PtrOf(uint32(migrateBatchSize)),
				WithPayload:    qdrant.NewWithPayload(false),
				WithVectors:    qdrant.NewWithVectors(false),
			})
			if err != nil {
				return tagged, fmt.Errorf("scrolling %s: %w", collection, err)
			}
			if len(points) == 0 {
				break
			}

			ids := make([]*qdrant.PointId, 0, len(points))
			for _, p := range points {
				ids = append(ids, p.Id)
			}

			_, err = client.SetPayload(ctx, &qdrant.SetPayloadPoints{
				CollectionName: collection,
				Payload: map[string]*qdrant.Value{
					"tenant_id": {Kind: &qdrant.Value_StringValue{StringValue: tenant}},
				},
				PointsSelector: &qdrant.PointsSelector{
					PointsSelectorOneOf: &qdrant.PointsSelector_Points{
						Points: &qdrant.PointsIdsList{Ids: ids},
					},
				},
				Wait: qdrant.PtrOf(true),
			})
			if err != nil {
				return tagged, fmt.Errorf("tagging points in %s: %w", collection, err)
			}
			taggedInCollection += len(ids)
			tagged += len(ids)
		}

		fmt.Printf("Collection %s: %d points tagged\n", collection, taggedInCollection)
	}

	return tagged, nil
}
