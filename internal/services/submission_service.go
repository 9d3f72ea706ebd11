package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/qrmerch/relay/internal/domain"
	"github.com/qrmerch/relay/internal/printful"
)

// ErrOrderClientMissing indicates the provider order client dependency is absent.
var ErrOrderClientMissing = errors.New("submission service: order client is not configured")

// SubmissionError surfaces a failed provider upsert to the webhook caller.
// The order is not marked processed, so a retried delivery can succeed later.
type SubmissionError struct {
	ExternalID string
	Cause      error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission service: order %s: %v", e.ExternalID, e.Cause)
}

// Unwrap exposes the underlying provider error.
func (e *SubmissionError) Unwrap() error { return e.Cause }

// artifactPlacement is the fixed placement slot the generated image is
// attached at, one file per submitted item.
const artifactPlacement = "default"

// SubmissionServiceDeps bundles constructor inputs for the submission service.
type SubmissionServiceDeps struct {
	Orders OrderClient
	Logger *zap.Logger
}

type submissionService struct {
	orders OrderClient
	logger *zap.Logger
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(deps SubmissionServiceDeps) (SubmissionService, error) {
	if deps.Orders == nil {
		return nil, ErrOrderClientMissing
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &submissionService{orders: deps.Orders, logger: logger}, nil
}

// Submit builds the provider order document keyed by the stringified order id
// and performs the idempotent upsert. An order with zero mappable items never
// reaches the provider.
func (s *submissionService) Submit(ctx context.Context, order domain.Order, items []domain.ResolvedItem) (domain.SubmissionResult, error) {
	externalID := order.ExternalID()

	if len(items) == 0 {
		s.logger.Info("submission skipped: no mapped items", zap.String("external_id", externalID))
		return domain.SubmissionResult{SkipReason: domain.SkipNoMappedItems}, nil
	}

	req := printful.OrderRequest{
		ExternalID: externalID,
		Recipient:  buildRecipient(order),
		Items:      buildOrderItems(items),
	}

	created, err := s.orders.UpsertOrder(ctx, req)
	if err != nil {
		return domain.SubmissionResult{}, &SubmissionError{ExternalID: externalID, Cause: err}
	}

	s.logger.Info("order submitted",
		zap.String("external_id", externalID),
		zap.Int64("provider_order_id", created.ID),
		zap.Int("items", len(items)),
	)
	return domain.SubmissionResult{Submitted: true, ProviderOrderID: created.ID}, nil
}

// buildRecipient populates the recipient from the order's shipping address,
// falling back to the customer's default address. Missing fields become empty
// strings, never errors.
func buildRecipient(order domain.Order) printful.Recipient {
	address := order.ShippingAddress
	if address == nil && order.Customer != nil {
		address = order.Customer.DefaultAddress
	}
	if address == nil {
		address = &domain.Address{}
	}

	email := order.Email
	if email == "" && order.Customer != nil {
		email = order.Customer.Email
	}

	return printful.Recipient{
		Name:        address.Name,
		Address1:    address.Address1,
		Address2:    address.Address2,
		City:        address.City,
		StateCode:   address.StateCode,
		CountryCode: address.CountryCode,
		Zip:         address.Zip,
		Email:       email,
		Phone:       address.Phone,
	}
}

func buildOrderItems(items []domain.ResolvedItem) []printful.OrderItem {
	out := make([]printful.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, printful.OrderItem{
			VariantID: item.FulfillmentVariantID,
			Quantity:  item.Quantity,
			Files: []printful.OrderFile{
				{Type: artifactPlacement, URL: item.ArtifactURL},
			},
		})
	}
	return out
}
