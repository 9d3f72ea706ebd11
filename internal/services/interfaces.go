package services

import (
	"context"

	"github.com/qrmerch/relay/internal/domain"
	"github.com/qrmerch/relay/internal/printful"
)

// CatalogClient is the subset of the provider API the sync service consumes.
type CatalogClient interface {
	ListSyncProducts(ctx context.Context, offset, limit int) ([]printful.SyncProduct, error)
	GetSyncProduct(ctx context.Context, productID int64) (printful.SyncProductDetail, error)
}

// OrderClient performs the idempotent provider order upsert.
type OrderClient interface {
	UpsertOrder(ctx context.Context, req printful.OrderRequest) (printful.CreatedOrder, error)
}

// SyncService owns the active catalog snapshot: it restores the persisted
// mapping at startup and rebuilds it from the provider catalog on demand.
type SyncService interface {
	// Active returns the currently serving snapshot. Never nil maps while a
	// restore or rebuild has completed at least once.
	Active() domain.CatalogSnapshot
	// Restore loads the last persisted snapshot into service.
	Restore(ctx context.Context) error
	// Rebuild fetches the full provider catalog and swaps the fresh snapshot
	// into use. Overlapping calls coalesce into one in-flight build.
	Rebuild(ctx context.Context) (domain.CatalogSnapshot, error)
}

// SnapshotSource is the read side of SyncService used during resolution.
type SnapshotSource interface {
	Active() domain.CatalogSnapshot
}

// SubmissionService builds the provider order document and performs the
// idempotent upsert.
type SubmissionService interface {
	Submit(ctx context.Context, order domain.Order, items []domain.ResolvedItem) (domain.SubmissionResult, error)
}

// ArtifactGenerator renders and hosts the image artifact attached to each
// submitted item, returning its public URL.
type ArtifactGenerator interface {
	Generate(ctx context.Context, order domain.Order) (string, error)
}

// RelayService drives one inbound order delivery through dedupe, artifact
// generation, resolution, and submission.
type RelayService interface {
	ProcessOrder(ctx context.Context, order domain.Order) (RelayOutcome, error)
}

// RelayOutcome is the result of processing one webhook delivery.
type RelayOutcome struct {
	// Duplicate is true when the dedupe guard short-circuited the delivery
	// before any work was done.
	Duplicate bool
	Result    domain.SubmissionResult
}
