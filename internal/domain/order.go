package domain

import "strconv"

// Order is an inbound merchant order as delivered by the shop webhook. It is
// owned by the caller for the duration of one delivery and never persisted.
type Order struct {
	ID              int64
	Email           string
	ShippingAddress *Address
	Customer        *Customer
	LineItems       []LineItem
}

// ExternalID returns the stringified order id used to key the provider upsert.
func (o Order) ExternalID() string {
	return strconv.FormatInt(o.ID, 10)
}

// Customer carries the fallback recipient source when the order has no
// shipping address of its own.
type Customer struct {
	Email          string
	DefaultAddress *Address
}

// Address holds recipient fields. Any of them may be empty; missing values
// are passed through as empty strings, never treated as fatal.
type Address struct {
	Name        string
	Address1    string
	Address2    string
	City        string
	StateCode   string
	CountryCode string
	Zip         string
	Phone       string
}

// LineItem is a single ordered position. SKU may be empty and the external
// variant id may be absent; Properties is an opaque bag used only to locate
// the artifact-text directive.
type LineItem struct {
	SKU               string
	ExternalVariantID string
	Quantity          int
	Properties        []LineItemProperty
}

// LineItemProperty is one entry of the opaque line-item property bag.
type LineItemProperty struct {
	Name  string
	Value string
}

// Property returns the value of the named property, or "" when absent.
func (l LineItem) Property(name string) string {
	for _, p := range l.Properties {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// ResolvedItem is a line item whose variant resolved against the active
// snapshot, ready for submission. Items that fail resolution are dropped,
// never defaulted.
type ResolvedItem struct {
	FulfillmentVariantID int64
	Quantity             int
	ArtifactURL          string
}

// SkipReason explains why an order was not submitted to the provider.
type SkipReason string

// SkipNoMappedItems is returned when zero line items resolved against the
// snapshot; such orders must never reach the provider.
const SkipNoMappedItems SkipReason = "no_mapped_items"

// SubmissionResult is the outcome of one submission attempt: either the
// provider accepted the upsert, or the order was skipped with a reason.
type SubmissionResult struct {
	Submitted       bool
	ProviderOrderID int64
	SkipReason      SkipReason
	DroppedItems    int
}
