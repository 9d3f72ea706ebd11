package printful

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexID is an identifier that arrives from the provider as either a JSON
// number or a JSON string. It normalizes to the string form for map-key
// stability.
type FlexID string

// UnmarshalJSON accepts strings, numbers, and null.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// String returns the normalized string form.
func (f FlexID) String() string { return string(f) }

// PositiveInt parses the id as a positive integer, reporting whether the
// value is usable as a fulfillment variant id.
func (f FlexID) PositiveInt() (int64, bool) {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// SyncProduct is one entry of the paginated store product listing. The
// listing does not embed variants; those require a per-product detail fetch.
type SyncProduct struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SyncProductDetail is the per-product detail response carrying the full
// variant list.
type SyncProductDetail struct {
	Product  SyncProduct   `json:"sync_product"`
	Variants []SyncVariant `json:"sync_variants"`
}

// SyncVariant is one provider-side variant of a store product.
type SyncVariant struct {
	ID         FlexID `json:"id"`
	ExternalID FlexID `json:"external_id"`
	SKU        string `json:"sku"`
	VariantID  FlexID `json:"variant_id"`
}

// FulfillmentVariantID derives the numeric id used on order submission,
// preferring variant_id and falling back to id. The boolean is false when
// neither field yields a valid positive integer.
func (v SyncVariant) FulfillmentVariantID() (int64, bool) {
	if id, ok := v.VariantID.PositiveInt(); ok {
		return id, true
	}
	return v.ID.PositiveInt()
}

// Recipient is the shipping destination of a provider order.
type Recipient struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// OrderFile attaches a print file to an order item at a placement slot.
type OrderFile struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// OrderItem is one submitted position of a provider order.
type OrderItem struct {
	VariantID int64       `json:"variant_id"`
	Quantity  int         `json:"quantity"`
	Files     []OrderFile `json:"files"`
}

// OrderRequest is the provider order document, keyed by the caller-supplied
// external id so that repeated submission upserts the same logical order.
type OrderRequest struct {
	ExternalID string      `json:"external_id"`
	Recipient  Recipient   `json:"recipient"`
	Items      []OrderItem `json:"items"`
}

// CreatedOrder is the provider's view of an accepted order.
type CreatedOrder struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

// envelope is the provider's uniform response wrapper.
type envelope struct {
	Code   int             `json:"code"`
	Result json.RawMessage `json:"result"`
	Error  *envelopeError  `json:"error"`
}

type envelopeError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}
