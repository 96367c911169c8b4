package parser

import (
	"bytes"

	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/normalizer"
)

// ModelEntry is one model in the top-level listing: aggregate availability
// and flat price, plus itemized vehicles when the response carried them.
type ModelEntry struct {
	Name     string
	Price    float64
	Count    int
	Vehicles []dtos.RawRecord
}

// ParseModelIndex interprets the top-level listing response. Two source
// shapes are handled: a "modelos" array of per-model aggregates, or a flat
// vehicle listing that is grouped by model here. Returns ErrNoData when
// neither yields anything.
func ParseModelIndex(raw []byte) ([]ModelEntry, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, ErrNoData
	}

	if entries := modelEntriesFromJSON(body, true); len(entries) > 0 {
		return entries, nil
	}

	// No explicit model array: fall back to the record strategies and group
	// whatever they produce by model name.
	records, err := Parse(body)
	if err != nil {
		return nil, err
	}
	entries := groupByModel(records)
	if len(entries) == 0 {
		return nil, ErrNoData
	}
	return entries, nil
}

func modelEntriesFromJSON(body []byte, allowDoubleDecode bool) []ModelEntry {
	if body[0] == '"' && allowDoubleDecode {
		if inner := decodeJSONString(body); inner != nil {
			return modelEntriesFromJSON(inner, false)
		}
		return nil
	}
	if body[0] != '{' {
		return nil
	}

	obj := decodeJSONObject(body)
	if obj == nil {
		return nil
	}
	arr, ok := obj["modelos"].([]interface{})
	if !ok {
		return nil
	}

	entries := make([]ModelEntry, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		model := dtos.RawRecord(m)
		name := model.String("nombre", "name", "modelo", "model")
		if name == "" {
			continue
		}

		entry := ModelEntry{
			Name:  name,
			Price: normalizer.ParsePrice(model.String("precio", "price")),
			Count: normalizer.ParseCount(model.String("disponibles", "count", "available")),
		}
		for _, key := range nestedListingKeys {
			if nested, ok := m[key].([]interface{}); ok && len(nested) > 0 {
				entry.Vehicles = recordsFromArray(nested, name)
				break
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func groupByModel(records []dtos.RawRecord) []ModelEntry {
	order := make([]string, 0)
	grouped := make(map[string][]dtos.RawRecord)

	for _, rec := range records {
		name := rec.String("modelo", "modelDisplayName", "model", "nombre")
		if name == "" {
			name = "Unknown"
		}
		if _, seen := grouped[name]; !seen {
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], rec)
	}

	entries := make([]ModelEntry, 0, len(order))
	for _, name := range order {
		vehicles := grouped[name]
		entries = append(entries, ModelEntry{
			Name:     name,
			Count:    len(vehicles),
			Vehicles: vehicles,
		})
	}
	return entries
}
