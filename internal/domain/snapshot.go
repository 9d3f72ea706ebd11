package domain

// CatalogSnapshot is an immutable-once-built pair of lookup tables mapping
// merchant identifiers to the fulfillment provider's sync variant ids. Both
// maps are derived from the same catalog fetch pass and are always swapped
// into use together.
type CatalogSnapshot struct {
	BySKU        map[string]int64
	ByExternalID map[string]int64
}

// NewCatalogSnapshot returns an empty snapshot with both maps allocated.
func NewCatalogSnapshot() CatalogSnapshot {
	return CatalogSnapshot{
		BySKU:        make(map[string]int64),
		ByExternalID: make(map[string]int64),
	}
}

// Empty reports whether the snapshot contains no mappings at all.
func (s CatalogSnapshot) Empty() bool {
	return len(s.BySKU) == 0 && len(s.ByExternalID) == 0
}
