package repositories

import (
	"context"

	"github.com/qrmerch/relay/internal/domain"
)

// SnapshotRepository persists the last known variant mapping across restarts.
//
// Load never fails on a missing or unreadable store; it returns an empty
// snapshot so the service can start serving and rebuild in the background.
// Save writes the canonical serialized form only when it differs from what is
// currently persisted.
type SnapshotRepository interface {
	Load(ctx context.Context) (domain.CatalogSnapshot, error)
	Save(ctx context.Context, snapshot domain.CatalogSnapshot) error
}
