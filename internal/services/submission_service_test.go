package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/qrmerch/relay/internal/domain"
	"github.com/qrmerch/relay/internal/printful"
)

type stubOrderClient struct {
	mu       sync.Mutex
	upsertFn func(ctx context.Context, req printful.OrderRequest) (printful.CreatedOrder, error)
	requests []printful.OrderRequest
}

func (s *stubOrderClient) UpsertOrder(ctx context.Context, req printful.OrderRequest) (printful.CreatedOrder, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.upsertFn != nil {
		return s.upsertFn(ctx, req)
	}
	return printful.CreatedOrder{ID: 1, ExternalID: req.ExternalID}, nil
}

func TestSubmitSkipsEmptyResolvedItems(t *testing.T) {
	client := &stubOrderClient{}
	svc, err := NewSubmissionService(SubmissionServiceDeps{Orders: client})
	if err != nil {
		t.Fatalf("new submission service: %v", err)
	}

	result, err := svc.Submit(context.Background(), domain.Order{ID: 1001}, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Submitted {
		t.Fatal("expected skip, got submitted")
	}
	if result.SkipReason != domain.SkipNoMappedItems {
		t.Fatalf("unexpected skip reason %q", result.SkipReason)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.requests) != 0 {
		t.Fatal("expected no provider contact for an order with zero mapped items")
	}
}

func TestSubmitBuildsUpsertKeyedByOrderID(t *testing.T) {
	client := &stubOrderClient{}
	client.upsertFn = func(_ context.Context, req printful.OrderRequest) (printful.CreatedOrder, error) {
		return printful.CreatedOrder{ID: 4242, ExternalID: req.ExternalID, Status: "draft"}, nil
	}

	svc, _ := NewSubmissionService(SubmissionServiceDeps{Orders: client})

	order := domain.Order{
		ID:    1001,
		Email: "buyer@example.com",
		ShippingAddress: &domain.Address{
			Name:        "Jo Doe",
			Address1:    "1 Main St",
			City:        "Springfield",
			CountryCode: "US",
			Zip:         "12345",
		},
	}
	items := []domain.ResolvedItem{
		{FulfillmentVariantID: 555, Quantity: 2, ArtifactURL: "https://cdn.example.com/qr/1001.png"},
	}

	result, err := svc.Submit(context.Background(), order, items)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Submitted || result.ProviderOrderID != 4242 {
		t.Fatalf("unexpected result %+v", result)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	req := client.requests[0]
	if req.ExternalID != "1001" {
		t.Fatalf("expected external id 1001, got %s", req.ExternalID)
	}
	if req.Recipient.Name != "Jo Doe" || req.Recipient.Email != "buyer@example.com" {
		t.Fatalf("unexpected recipient %+v", req.Recipient)
	}
	if len(req.Items) != 1 || req.Items[0].VariantID != 555 || req.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", req.Items)
	}
	if len(req.Items[0].Files) != 1 || req.Items[0].Files[0].URL != "https://cdn.example.com/qr/1001.png" {
		t.Fatalf("expected exactly one artifact file per item, got %+v", req.Items[0].Files)
	}
	if req.Items[0].Files[0].Type != "default" {
		t.Fatalf("unexpected placement %q", req.Items[0].Files[0].Type)
	}
}

func TestSubmitRecipientFallsBackToCustomer(t *testing.T) {
	client := &stubOrderClient{}
	svc, _ := NewSubmissionService(SubmissionServiceDeps{Orders: client})

	order := domain.Order{
		ID: 5,
		Customer: &domain.Customer{
			Email:          "fallback@example.com",
			DefaultAddress: &domain.Address{Name: "Fallback", CountryCode: "DE"},
		},
	}

	if _, err := svc.Submit(context.Background(), order, []domain.ResolvedItem{{FulfillmentVariantID: 1, Quantity: 1}}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	recipient := client.requests[0].Recipient
	if recipient.Name != "Fallback" || recipient.CountryCode != "DE" {
		t.Fatalf("expected customer default address, got %+v", recipient)
	}
	if recipient.Email != "fallback@example.com" {
		t.Fatalf("expected customer email fallback, got %q", recipient.Email)
	}
}

func TestSubmitMissingRecipientFieldsAreEmptyNotFatal(t *testing.T) {
	client := &stubOrderClient{}
	svc, _ := NewSubmissionService(SubmissionServiceDeps{Orders: client})

	if _, err := svc.Submit(context.Background(), domain.Order{ID: 6}, []domain.ResolvedItem{{FulfillmentVariantID: 1, Quantity: 1}}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	recipient := client.requests[0].Recipient
	if recipient.Name != "" || recipient.Address1 != "" || recipient.CountryCode != "" {
		t.Fatalf("expected empty recipient fields, got %+v", recipient)
	}
}

func TestSubmitWrapsProviderRejection(t *testing.T) {
	client := &stubOrderClient{}
	client.upsertFn = func(context.Context, printful.OrderRequest) (printful.CreatedOrder, error) {
		return printful.CreatedOrder{}, &printful.APIError{Status: 400, Message: "invalid recipient"}
	}

	svc, _ := NewSubmissionService(SubmissionServiceDeps{Orders: client})
	_, err := svc.Submit(context.Background(), domain.Order{ID: 7}, []domain.ResolvedItem{{FulfillmentVariantID: 1, Quantity: 1}})

	var submissionErr *SubmissionError
	if !errors.As(err, &submissionErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if submissionErr.ExternalID != "7" {
		t.Fatalf("unexpected external id %s", submissionErr.ExternalID)
	}

	var apiErr *printful.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "invalid recipient" {
		t.Fatalf("expected provider payload preserved, got %v", err)
	}
}
