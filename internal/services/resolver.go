package services

import "github.com/qrmerch/relay/internal/domain"

// Resolve maps a line item to its fulfillment variant id against the given
// snapshot. Policy, in order: a non-empty SKU present in the SKU map wins;
// otherwise a present external variant id is tried against the external map;
// otherwise the item is unresolved. Exact key equality only; no fuzzy or
// partial matching.
func Resolve(item domain.LineItem, snapshot domain.CatalogSnapshot) (int64, bool) {
	if item.SKU != "" {
		if id, ok := snapshot.BySKU[item.SKU]; ok {
			return id, true
		}
	}
	if item.ExternalVariantID != "" {
		if id, ok := snapshot.ByExternalID[item.ExternalVariantID]; ok {
			return id, true
		}
	}
	return 0, false
}
