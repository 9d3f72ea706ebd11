package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/qrmerch/relay/internal/domain"
)

var (
	// ErrSnapshotSourceMissing indicates the snapshot source dependency is absent.
	ErrSnapshotSourceMissing = errors.New("relay service: snapshot source is not configured")
	// ErrSubmitterMissing indicates the submission service dependency is absent.
	ErrSubmitterMissing = errors.New("relay service: submission service is not configured")
	// ErrArtifactGeneratorMissing indicates the artifact generator dependency is absent.
	ErrArtifactGeneratorMissing = errors.New("relay service: artifact generator is not configured")
)

// RelayServiceDeps bundles constructor inputs for the relay service.
type RelayServiceDeps struct {
	Snapshots SnapshotSource
	Submitter SubmissionService
	Artifacts ArtifactGenerator
	Guard     *DedupeGuard
	Logger    *zap.Logger
}

type relayService struct {
	snapshots SnapshotSource
	submitter SubmissionService
	artifacts ArtifactGenerator
	guard     *DedupeGuard
	logger    *zap.Logger
}

// NewRelayService constructs the relay service with the supplied dependencies.
func NewRelayService(deps RelayServiceDeps) (RelayService, error) {
	if deps.Snapshots == nil {
		return nil, ErrSnapshotSourceMissing
	}
	if deps.Submitter == nil {
		return nil, ErrSubmitterMissing
	}
	if deps.Artifacts == nil {
		return nil, ErrArtifactGeneratorMissing
	}
	guard := deps.Guard
	if guard == nil {
		guard = NewDedupeGuard()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &relayService{
		snapshots: deps.Snapshots,
		submitter: deps.Submitter,
		artifacts: deps.Artifacts,
		guard:     guard,
		logger:    logger,
	}, nil
}

// ProcessOrder drives one delivery through the pipeline: dedupe guard,
// artifact generation, variant resolution, submission. The order is marked
// processed only after a confirmed success or an explicit skip.
func (s *relayService) ProcessOrder(ctx context.Context, order domain.Order) (RelayOutcome, error) {
	externalID := order.ExternalID()
	logger := s.logger.With(zap.String("external_id", externalID))

	if !s.guard.ShouldProcess(externalID) {
		logger.Info("duplicate delivery short-circuited")
		return RelayOutcome{Duplicate: true}, nil
	}

	artifactURL, err := s.artifacts.Generate(ctx, order)
	if err != nil {
		return RelayOutcome{}, fmt.Errorf("relay service: generate artifact for order %s: %w", externalID, err)
	}

	snapshot := s.snapshots.Active()

	resolved := make([]domain.ResolvedItem, 0, len(order.LineItems))
	dropped := 0
	for _, item := range order.LineItems {
		variantID, ok := Resolve(item, snapshot)
		if !ok {
			dropped++
			logger.Warn("line item unresolved, dropped",
				zap.String("sku", item.SKU),
				zap.String("external_variant_id", item.ExternalVariantID),
			)
			continue
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		resolved = append(resolved, domain.ResolvedItem{
			FulfillmentVariantID: variantID,
			Quantity:             quantity,
			ArtifactURL:          artifactURL,
		})
	}

	result, err := s.submitter.Submit(ctx, order, resolved)
	if err != nil {
		// Not marked processed: a legitimate retry by the sender can succeed.
		return RelayOutcome{}, err
	}
	result.DroppedItems = dropped

	s.guard.MarkProcessed(externalID)
	return RelayOutcome{Result: result}, nil
}
