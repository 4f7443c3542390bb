package cart

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fjod/med_store/internal/domain"
)

// persistedEntry is the on-disk shape of one cart line.
type persistedEntry struct {
	ProductIdentifier string                 `json:"productIdentifier"`
	Quantity          int                    `json:"quantity"`
	ProductSnapshot   domain.ProductSnapshot `json:"productSnapshot"`
}

func encodeEntries(entries map[string]domain.CartEntry) ([]byte, error) {
	records := make([]persistedEntry, 0, len(entries))
	for _, e := range sortedEntries(entries) {
		records = append(records, persistedEntry{
			ProductIdentifier: e.Product.ID,
			Quantity:          e.Quantity,
			ProductSnapshot:   e.Product,
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

// decodeEntries rejects the whole record if any line breaks a cart invariant.
func decodeEntries(data []byte) (map[string]domain.CartEntry, error) {
	var records []persistedEntry
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	entries := make(map[string]domain.CartEntry, len(records))
	for i, r := range records {
		switch {
		case r.ProductIdentifier == "":
			return nil, fmt.Errorf("entry %d: empty product identifier", i)
		case r.ProductSnapshot.ID != r.ProductIdentifier:
			return nil, fmt.Errorf("entry %d: snapshot id %q does not match %q", i, r.ProductSnapshot.ID, r.ProductIdentifier)
		case r.Quantity < 1:
			return nil, fmt.Errorf("entry %d: quantity %d below 1", i, r.Quantity)
		case r.ProductSnapshot.Price.IsNegative():
			return nil, fmt.Errorf("entry %d: negative price", i)
		}
		if _, dup := entries[r.ProductIdentifier]; dup {
			return nil, fmt.Errorf("entry %d: duplicate product %q", i, r.ProductIdentifier)
		}
		entries[r.ProductIdentifier] = domain.CartEntry{
			Product:  r.ProductSnapshot,
			Quantity: r.Quantity,
		}
	}
	return entries, nil
}

func sortedEntries(entries map[string]domain.CartEntry) []domain.CartEntry {
	out := make([]domain.CartEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product.ID < out[j].Product.ID })
	return out
}
