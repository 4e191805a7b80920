package fhir

import (
	"encoding/json"
	"fmt"
)

type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// DecodeEntries unmarshals every entry resource into T
func DecodeEntries[T any](b *Bundle) ([]T, error) {
	if b == nil {
		return nil, nil
	}

	out := make([]T, 0, len(b.Entry))
	for i, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(e.Resource, &v); err != nil {
			return nil, fmt.Errorf("failed to decode bundle entry %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
