package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qrmerch/relay/internal/domain"
)

// snapshotDocument is the persisted shape of the variant mapping.
type snapshotDocument struct {
	SKUMap      map[string]int64 `json:"skuMap"`
	ExternalMap map[string]int64 `json:"externalMap"`
}

// SnapshotRepository stores the variant mapping as a JSON document on disk.
// Only one builder runs at a time, so no file locking is needed.
type SnapshotRepository struct {
	path string
}

// NewSnapshotRepository constructs a repository writing to the given path.
func NewSnapshotRepository(path string) (*SnapshotRepository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("snapshot repository: path is required")
	}
	return &SnapshotRepository{path: path}, nil
}

// Load reads the persisted mapping. A missing, empty, or corrupt store yields
// an empty snapshot, never an error: the catalog rebuild recovers the state.
// A legacy document containing only the flat SKU table loads with the
// external map empty.
func (r *SnapshotRepository) Load(_ context.Context) (domain.CatalogSnapshot, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return domain.NewCatalogSnapshot(), nil
	}

	var doc snapshotDocument
	if err := json.Unmarshal(raw, &doc); err == nil && (doc.SKUMap != nil || doc.ExternalMap != nil) {
		return snapshotFromDocument(doc), nil
	}

	// Legacy shape: the whole document is the SKU table.
	var legacy map[string]int64
	if err := json.Unmarshal(raw, &legacy); err == nil && legacy != nil {
		return snapshotFromDocument(snapshotDocument{SKUMap: legacy}), nil
	}

	return domain.NewCatalogSnapshot(), nil
}

// Save persists the snapshot, eliding the write when the canonical serialized
// form matches what is already on disk.
func (r *SnapshotRepository) Save(_ context.Context, snapshot domain.CatalogSnapshot) error {
	doc := snapshotDocument{
		SKUMap:      snapshot.BySKU,
		ExternalMap: snapshot.ByExternalID,
	}
	if doc.SKUMap == nil {
		doc.SKUMap = map[string]int64{}
	}
	if doc.ExternalMap == nil {
		doc.ExternalMap = map[string]int64{}
	}

	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot repository: encode: %w", err)
	}
	encoded = append(encoded, '\n')

	if current, err := os.ReadFile(r.path); err == nil && bytes.Equal(current, encoded) {
		return nil
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot repository: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".variant-map-*")
	if err != nil {
		return fmt.Errorf("snapshot repository: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("snapshot repository: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("snapshot repository: close: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("snapshot repository: replace: %w", err)
	}
	return nil
}

func snapshotFromDocument(doc snapshotDocument) domain.CatalogSnapshot {
	snapshot := domain.NewCatalogSnapshot()
	for sku, id := range doc.SKUMap {
		if sku != "" && id > 0 {
			snapshot.BySKU[sku] = id
		}
	}
	for external, id := range doc.ExternalMap {
		if external != "" && id > 0 {
			snapshot.ByExternalID[external] = id
		}
	}
	return snapshot
}
