package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/qrmerch/relay/internal/domain"
	"github.com/qrmerch/relay/internal/platform/httpx"
	"github.com/qrmerch/relay/internal/platform/requestctx"
	"github.com/qrmerch/relay/internal/services"
)

const (
	maxWebhookBodySize    = 1 << 20
	webhookDeliveryHeader = "X-Shopify-Webhook-Id"
)

// flexString accepts a JSON string, number, bool, or null and normalises the
// value to a string. Shop payloads are inconsistent about numeric fields.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(trimmed)
	return nil
}

func (f flexString) String() string { return string(f) }

type webhookAddress struct {
	Name         string `json:"name"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	ProvinceCode string `json:"province_code"`
	CountryCode  string `json:"country_code"`
	Zip          string `json:"zip"`
	Phone        string `json:"phone"`
}

type webhookProperty struct {
	Name  string     `json:"name"`
	Value flexString `json:"value"`
}

type webhookLineItem struct {
	SKU        string            `json:"sku"`
	VariantID  flexString        `json:"variant_id"`
	Quantity   int               `json:"quantity"`
	Properties []webhookProperty `json:"properties"`
}

type webhookCustomer struct {
	Email          string          `json:"email"`
	DefaultAddress *webhookAddress `json:"default_address"`
}

type orderWebhookPayload struct {
	ID              int64             `json:"id"`
	Email           string            `json:"email"`
	ShippingAddress *webhookAddress   `json:"shipping_address"`
	Customer        *webhookCustomer  `json:"customer"`
	LineItems       []webhookLineItem `json:"line_items"`
}

// WebhookHandlers receives shop order webhooks and relays them to the
// fulfillment pipeline.
type WebhookHandlers struct {
	relay  services.RelayService
	logger *zap.Logger
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(relay services.RelayService, logger *zap.Logger) *WebhookHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandlers{relay: relay, logger: logger}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders", h.handleOrderCreated)
}

func (h *WebhookHandlers) handleOrderCreated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.relay == nil {
		httpx.WriteError(ctx, w, httpx.NewError("relay_unavailable", "relay service unavailable", http.StatusServiceUnavailable))
		return
	}

	deliveryID := strings.TrimSpace(r.Header.Get(webhookDeliveryHeader))
	if deliveryID == "" {
		deliveryID = ulid.Make().String()
	}
	ctx = requestctx.WithDeliveryID(ctx, deliveryID)
	logger := h.logger.With(zap.String("delivery_id", deliveryID))

	var payload orderWebhookPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err := decoder.Decode(&payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "request body must be a JSON order", http.StatusBadRequest))
		return
	}
	if payload.ID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "order id is required", http.StatusBadRequest))
		return
	}

	order := payload.toDomain()

	outcome, err := h.relay.ProcessOrder(ctx, order)
	if err != nil {
		var submissionErr *services.SubmissionError
		if errors.As(err, &submissionErr) {
			logger.Error("provider rejected order submission", zap.String("external_id", submissionErr.ExternalID), zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("submission_failed", "fulfillment provider rejected the order", http.StatusBadGateway))
			return
		}
		logger.Error("order relay failed", zap.Int64("order_id", order.ID), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process order", http.StatusInternalServerError))
		return
	}

	response := map[string]any{"order_id": order.ID}
	switch {
	case outcome.Duplicate:
		response["status"] = "duplicate"
	case outcome.Result.Submitted:
		response["status"] = "submitted"
		response["provider_order_id"] = outcome.Result.ProviderOrderID
		if outcome.Result.DroppedItems > 0 {
			response["dropped_items"] = outcome.Result.DroppedItems
		}
	default:
		response["status"] = "skipped"
		response["reason"] = string(outcome.Result.SkipReason)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func (p orderWebhookPayload) toDomain() domain.Order {
	order := domain.Order{
		ID:              p.ID,
		Email:           p.Email,
		ShippingAddress: p.ShippingAddress.toDomain(),
	}
	if p.Customer != nil {
		order.Customer = &domain.Customer{
			Email:          p.Customer.Email,
			DefaultAddress: p.Customer.DefaultAddress.toDomain(),
		}
	}
	for _, item := range p.LineItems {
		lineItem := domain.LineItem{
			SKU:               item.SKU,
			ExternalVariantID: item.VariantID.String(),
			Quantity:          item.Quantity,
		}
		for _, prop := range item.Properties {
			lineItem.Properties = append(lineItem.Properties, domain.LineItemProperty{
				Name:  prop.Name,
				Value: prop.Value.String(),
			})
		}
		order.LineItems = append(order.LineItems, lineItem)
	}
	return order
}

func (a *webhookAddress) toDomain() *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		Name:        a.Name,
		Address1:    a.Address1,
		Address2:    a.Address2,
		City:        a.City,
		StateCode:   a.ProvinceCode,
		CountryCode: a.CountryCode,
		Zip:         a.Zip,
		Phone:       a.Phone,
	}
}
