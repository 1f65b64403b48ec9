package gallery

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// OrphanReport lists the two kinds of cross-store inconsistency.
type OrphanReport struct {
	// OrphanBlobs are stored blobs that no record references.
	OrphanBlobs []string `json:"orphan_blobs"`
	// OrphanRecords are record storage paths with no blob behind them.
	OrphanRecords []string `json:"orphan_records"`
}

// Reconciler finds inconsistencies between blob storage and the table store.
// Implementations report; cleanup is left to an operator.
type Reconciler interface {
	Scan(ctx context.Context) (*OrphanReport, error)
}

// StoreReconciler compares every gallery blob key against every record path.
// Couple photo blobs are excluded.
type StoreReconciler struct {
	Blobs  BlobStore
	Photos PhotoStore
}

func (r *StoreReconciler) Scan(ctx context.Context) (*OrphanReport, error) {
	keys, err := r.Blobs.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	paths, err := r.Photos.ListStoragePaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list storage paths: %w", err)
	}

	blobSet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, CouplePrefix) {
			continue
		}
		blobSet[k] = struct{}{}
	}
	recordSet := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		recordSet[p] = struct{}{}
	}

	report := &OrphanReport{OrphanBlobs: []string{}, OrphanRecords: []string{}}
	for k := range blobSet {
		if _, ok := recordSet[k]; !ok {
			report.OrphanBlobs = append(report.OrphanBlobs, k)
		}
	}
	for p := range recordSet {
		if _, ok := blobSet[p]; !ok {
			report.OrphanRecords = append(report.OrphanRecords, p)
		}
	}
	sort.Strings(report.OrphanBlobs)
	sort.Strings(report.OrphanRecords)
	return report, nil
}
