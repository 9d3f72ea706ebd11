package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/qrmerch/relay/internal/domain"
	"github.com/qrmerch/relay/internal/printful"
	"github.com/qrmerch/relay/internal/repositories"
)

const (
	defaultCatalogPageSize   = 20
	defaultDetailConcurrency = 4
)

var (
	// ErrCatalogClientMissing indicates the provider client dependency is absent.
	ErrCatalogClientMissing = errors.New("sync service: catalog client is not configured")
	// ErrSnapshotRepositoryMissing indicates the persistence dependency is absent.
	ErrSnapshotRepositoryMissing = errors.New("sync service: snapshot repository is not configured")
	// ErrUpstreamUnavailable indicates the provider catalog could not be read.
	// The previously active snapshot remains in service.
	ErrUpstreamUnavailable = errors.New("sync service: catalog upstream unavailable")
)

// SyncServiceDeps bundles constructor inputs for the sync service.
type SyncServiceDeps struct {
	Catalog           CatalogClient
	Snapshots         repositories.SnapshotRepository
	Logger            *zap.Logger
	PageSize          int
	DetailConcurrency int
}

type syncService struct {
	catalog           CatalogClient
	snapshots         repositories.SnapshotRepository
	logger            *zap.Logger
	pageSize          int
	detailConcurrency int

	mu     sync.RWMutex
	active domain.CatalogSnapshot

	group singleflight.Group
}

// NewSyncService constructs the sync service with the supplied dependencies.
func NewSyncService(deps SyncServiceDeps) (SyncService, error) {
	if deps.Catalog == nil {
		return nil, ErrCatalogClientMissing
	}
	if deps.Snapshots == nil {
		return nil, ErrSnapshotRepositoryMissing
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultCatalogPageSize
	}
	concurrency := deps.DetailConcurrency
	if concurrency <= 0 {
		concurrency = defaultDetailConcurrency
	}
	return &syncService{
		catalog:           deps.Catalog,
		snapshots:         deps.Snapshots,
		logger:            logger,
		pageSize:          pageSize,
		detailConcurrency: concurrency,
		active:            domain.NewCatalogSnapshot(),
	}, nil
}

// Active returns the currently serving snapshot. Readers never observe a
// partially built mapping: a rebuild assembles the new snapshot off to the
// side and the swap below is the only mutation.
func (s *syncService) Active() domain.CatalogSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Restore loads the last persisted snapshot so resolution can serve while the
// first rebuild runs in the background.
func (s *syncService) Restore(ctx context.Context) error {
	snapshot, err := s.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("sync service: restore snapshot: %w", err)
	}

	s.mu.Lock()
	s.active = snapshot
	s.mu.Unlock()

	s.logger.Info("snapshot restored",
		zap.Int("sku_count", len(snapshot.BySKU)),
		zap.Int("external_count", len(snapshot.ByExternalID)),
	)
	return nil
}

// Rebuild pulls the full provider catalog and swaps the fresh snapshot into
// use. Overlapping calls coalesce into a single in-flight build so two builds
// can never race on the swap or the persistence write.
func (s *syncService) Rebuild(ctx context.Context) (domain.CatalogSnapshot, error) {
	result, err, _ := s.group.Do("rebuild", func() (any, error) {
		snapshot, err := s.build(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.active = snapshot
		s.mu.Unlock()

		// Persistence failure does not invalidate the in-memory swap; the
		// mapping is already serving and the next rebuild retries the write.
		if err := s.snapshots.Save(ctx, snapshot); err != nil {
			s.logger.Error("snapshot persist failed", zap.Error(err))
		}

		s.logger.Info("snapshot rebuilt",
			zap.Int("sku_count", len(snapshot.BySKU)),
			zap.Int("external_count", len(snapshot.ByExternalID)),
		)
		return snapshot, nil
	})
	if err != nil {
		return domain.CatalogSnapshot{}, err
	}
	return result.(domain.CatalogSnapshot), nil
}

// build assembles a fresh snapshot without touching the active one.
func (s *syncService) build(ctx context.Context) (domain.CatalogSnapshot, error) {
	products, err := s.listAllProducts(ctx)
	if err != nil {
		return domain.CatalogSnapshot{}, err
	}

	details, err := s.fetchDetails(ctx, products)
	if err != nil {
		return domain.CatalogSnapshot{}, err
	}

	// Merge in listing order so identical upstream content always yields an
	// identical snapshot regardless of fetch interleaving.
	snapshot := domain.NewCatalogSnapshot()
	for _, detail := range details {
		for _, variant := range detail.Variants {
			id, ok := variant.FulfillmentVariantID()
			if !ok {
				s.logger.Warn("variant skipped: no usable fulfillment id",
					zap.Int64("product_id", detail.Product.ID),
					zap.String("sku", variant.SKU),
					zap.String("external_id", variant.ExternalID.String()),
				)
				continue
			}
			if sku := strings.TrimSpace(variant.SKU); sku != "" {
				snapshot.BySKU[sku] = id
			}
			if external := variant.ExternalID.String(); external != "" {
				snapshot.ByExternalID[external] = id
			}
		}
	}
	return snapshot, nil
}

// listAllProducts pages through the catalog until a page comes back short.
// The provider does not reliably expose a total count.
func (s *syncService) listAllProducts(ctx context.Context) ([]printful.SyncProduct, error) {
	var products []printful.SyncProduct
	for offset := 0; ; offset += s.pageSize {
		page, err := s.catalog.ListSyncProducts(ctx, offset, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: list products at offset %d: %s", ErrUpstreamUnavailable, offset, err)
		}
		products = append(products, page...)
		if len(page) < s.pageSize {
			return products, nil
		}
	}
}

// fetchDetails fans out per-product detail fetches up to the concurrency cap
// and returns results indexed by listing position.
func (s *syncService) fetchDetails(ctx context.Context, products []printful.SyncProduct) ([]printful.SyncProductDetail, error) {
	details := make([]printful.SyncProductDetail, len(products))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.detailConcurrency)
	for i, product := range products {
		i, product := i, product
		g.Go(func() error {
			detail, err := s.catalog.GetSyncProduct(ctx, product.ID)
			if err != nil {
				return fmt.Errorf("%w: product %d detail: %s", ErrUpstreamUnavailable, product.ID, err)
			}
			details[i] = detail
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}
