package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/qrmerch/relay/internal/domain"
	"github.com/qrmerch/relay/internal/printful"
)

type stubSnapshotSource struct {
	snapshot domain.CatalogSnapshot
}

func (s *stubSnapshotSource) Active() domain.CatalogSnapshot { return s.snapshot }

type stubArtifactGenerator struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (s *stubArtifactGenerator) Generate(context.Context, domain.Order) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if s.url == "" {
		return "https://cdn.example.com/qr/x.png", nil
	}
	return s.url, nil
}

func (s *stubArtifactGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newRelayFixture(t *testing.T, snapshot domain.CatalogSnapshot, orders *stubOrderClient) (RelayService, *stubArtifactGenerator) {
	t.Helper()
	submitter, err := NewSubmissionService(SubmissionServiceDeps{Orders: orders})
	if err != nil {
		t.Fatalf("new submission service: %v", err)
	}
	artifacts := &stubArtifactGenerator{url: "https://cdn.example.com/qr/1001.png"}
	relay, err := NewRelayService(RelayServiceDeps{
		Snapshots: &stubSnapshotSource{snapshot: snapshot},
		Submitter: submitter,
		Artifacts: artifacts,
	})
	if err != nil {
		t.Fatalf("new relay service: %v", err)
	}
	return relay, artifacts
}

func TestProcessOrderResolvesAndSubmits(t *testing.T) {
	snapshot := domain.CatalogSnapshot{
		BySKU:        map[string]int64{"A1": 555},
		ByExternalID: map[string]int64{"99": 555},
	}
	orders := &stubOrderClient{}
	orders.upsertFn = func(_ context.Context, req printful.OrderRequest) (printful.CreatedOrder, error) {
		return printful.CreatedOrder{ID: 4242, ExternalID: req.ExternalID}, nil
	}
	relay, _ := newRelayFixture(t, snapshot, orders)

	order := domain.Order{
		ID: 1001,
		LineItems: []domain.LineItem{
			{SKU: "A1", ExternalVariantID: "99", Quantity: 2},
		},
	}

	outcome, err := relay.ProcessOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Duplicate {
		t.Fatal("unexpected duplicate outcome")
	}
	if !outcome.Result.Submitted || outcome.Result.ProviderOrderID != 4242 {
		t.Fatalf("unexpected result %+v", outcome.Result)
	}

	orders.mu.Lock()
	defer orders.mu.Unlock()
	items := orders.requests[0].Items
	if len(items) != 1 || items[0].VariantID != 555 || items[0].Quantity != 2 {
		t.Fatalf("unexpected submitted items %+v", items)
	}
	if items[0].Files[0].URL != "https://cdn.example.com/qr/1001.png" {
		t.Fatalf("expected artifact url attached, got %+v", items[0].Files)
	}
}

func TestProcessOrderDropsUnresolvedItems(t *testing.T) {
	snapshot := domain.CatalogSnapshot{
		BySKU:        map[string]int64{"A1": 555},
		ByExternalID: map[string]int64{},
	}
	orders := &stubOrderClient{}
	relay, _ := newRelayFixture(t, snapshot, orders)

	order := domain.Order{
		ID: 1002,
		LineItems: []domain.LineItem{
			{SKU: "A1", Quantity: 1},
			{SKU: "UNKNOWN", Quantity: 3},
			{ExternalVariantID: "404"},
		},
	}

	outcome, err := relay.ProcessOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Result.DroppedItems != 2 {
		t.Fatalf("expected 2 dropped items, got %d", outcome.Result.DroppedItems)
	}

	orders.mu.Lock()
	defer orders.mu.Unlock()
	if len(orders.requests[0].Items) != 1 {
		t.Fatalf("expected unresolved items excluded, got %+v", orders.requests[0].Items)
	}
}

func TestProcessOrderSkipsWhenNothingResolves(t *testing.T) {
	orders := &stubOrderClient{}
	relay, _ := newRelayFixture(t, domain.NewCatalogSnapshot(), orders)

	order := domain.Order{ID: 1003, LineItems: []domain.LineItem{{SKU: "NOPE"}}}
	outcome, err := relay.ProcessOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Result.Submitted {
		t.Fatal("expected skip")
	}
	if outcome.Result.SkipReason != domain.SkipNoMappedItems {
		t.Fatalf("unexpected reason %q", outcome.Result.SkipReason)
	}

	orders.mu.Lock()
	defer orders.mu.Unlock()
	if len(orders.requests) != 0 {
		t.Fatal("expected no provider write")
	}
}

func TestProcessOrderDefaultsQuantityToOne(t *testing.T) {
	snapshot := domain.CatalogSnapshot{BySKU: map[string]int64{"A1": 555}, ByExternalID: map[string]int64{}}
	orders := &stubOrderClient{}
	relay, _ := newRelayFixture(t, snapshot, orders)

	order := domain.Order{ID: 1004, LineItems: []domain.LineItem{{SKU: "A1"}}}
	if _, err := relay.ProcessOrder(context.Background(), order); err != nil {
		t.Fatalf("process: %v", err)
	}

	orders.mu.Lock()
	defer orders.mu.Unlock()
	if orders.requests[0].Items[0].Quantity != 1 {
		t.Fatalf("expected quantity defaulted to 1, got %d", orders.requests[0].Items[0].Quantity)
	}
}

func TestProcessOrderSecondDeliveryShortCircuitsBeforeArtifactWork(t *testing.T) {
	snapshot := domain.CatalogSnapshot{BySKU: map[string]int64{"A1": 555}, ByExternalID: map[string]int64{}}
	orders := &stubOrderClient{}
	relay, artifacts := newRelayFixture(t, snapshot, orders)

	order := domain.Order{ID: 1005, LineItems: []domain.LineItem{{SKU: "A1", Quantity: 2}}}
	ctx := context.Background()

	if _, err := relay.ProcessOrder(ctx, order); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	outcome, err := relay.ProcessOrder(ctx, order)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !outcome.Duplicate {
		t.Fatal("expected duplicate short-circuit")
	}
	if artifacts.callCount() != 1 {
		t.Fatalf("expected artifact generated once, got %d", artifacts.callCount())
	}

	orders.mu.Lock()
	defer orders.mu.Unlock()
	if len(orders.requests) != 1 {
		t.Fatalf("expected a single provider write, got %d", len(orders.requests))
	}
}

func TestProcessOrderFailureLeavesOrderRetryable(t *testing.T) {
	snapshot := domain.CatalogSnapshot{BySKU: map[string]int64{"A1": 555}, ByExternalID: map[string]int64{}}
	orders := &stubOrderClient{}
	attempts := 0
	orders.upsertFn = func(_ context.Context, req printful.OrderRequest) (printful.CreatedOrder, error) {
		attempts++
		if attempts == 1 {
			return printful.CreatedOrder{}, &printful.APIError{Status: 500, Message: "provider down"}
		}
		return printful.CreatedOrder{ID: 9, ExternalID: req.ExternalID}, nil
	}
	relay, _ := newRelayFixture(t, snapshot, orders)

	order := domain.Order{ID: 1006, LineItems: []domain.LineItem{{SKU: "A1"}}}
	ctx := context.Background()

	_, err := relay.ProcessOrder(ctx, order)
	var submissionErr *SubmissionError
	if !errors.As(err, &submissionErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}

	// The failed delivery was not marked processed; the retry succeeds.
	outcome, err := relay.ProcessOrder(ctx, order)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if outcome.Duplicate || !outcome.Result.Submitted {
		t.Fatalf("expected retry to submit, got %+v", outcome)
	}
}

func TestProcessOrderArtifactFailureNotMarkedProcessed(t *testing.T) {
	orders := &stubOrderClient{}
	submitter, _ := NewSubmissionService(SubmissionServiceDeps{Orders: orders})
	artifacts := &stubArtifactGenerator{err: errors.New("bucket unavailable")}
	relay, err := NewRelayService(RelayServiceDeps{
		Snapshots: &stubSnapshotSource{snapshot: domain.NewCatalogSnapshot()},
		Submitter: submitter,
		Artifacts: artifacts,
	})
	if err != nil {
		t.Fatalf("new relay service: %v", err)
	}

	order := domain.Order{ID: 1007}
	if _, err := relay.ProcessOrder(context.Background(), order); err == nil {
		t.Fatal("expected artifact failure to surface")
	}

	// Next delivery is not treated as a duplicate.
	artifacts.mu.Lock()
	artifacts.err = nil
	artifacts.mu.Unlock()
	outcome, err := relay.ProcessOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if outcome.Duplicate {
		t.Fatal("expected retry to be processed, not deduped")
	}
}
