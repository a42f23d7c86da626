package http

import (
	"context"

	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

// CollectionTotals sums point counts across every collection.
//
// Returns (-1, -1) when the totals cannot be determined:
//   - store is nil
//   - listing collections fails
//   - the collections list is empty (chromem loads collections lazily,
//     so a fresh open reports none until first access)
//
// Collections whose info cannot be fetched are skipped, not fatal.
func CollectionTotals(ctx context.Context, store vectorstore.Store) (collections int, points int) {
	if store == nil {
		return -1, -1
	}

	names, err := store.ListCollections(ctx)
	if err != nil {
		return -1, -1
	}
	if len(names) == 0 {
		return -1, -1
	}

	for _, name := range names {
		info, err := store.GetCollectionInfo(ctx, name)
		if err != nil || info == nil {
			continue
		}
		collections++
		points += info.PointCount
	}

	return collections, points
}
