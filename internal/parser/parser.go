// Package parser interprets raw upstream response bodies. The outlet site
// answers the same endpoint with different shapes depending on the day:
// a structured JSON listing, a JSON-encoded string that needs a second
// decode, an HTML page with the payload inlined in a script tag, or plain
// markup. Strategies are tried in a fixed priority order and the first one
// that yields records wins.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/normalizer"
)

// ErrNoData is returned once every strategy has been exhausted without
// producing a single record. Terminal for the call: re-parsing the same
// body cannot succeed, only a re-fetch can.
var ErrNoData = errors.New("no records extracted from response")

// listingKeys are the top-level keys the source has been observed to use
// for a flat vehicle array, in priority order.
var listingKeys = []string{"vehicles", "cars", "content", "vehiculos", "coches"}

// nestedListingKeys are per-model keys that may carry itemized vehicles.
var nestedListingKeys = []string{"vehiculos", "vehicles", "cars", "items"}

// scriptPatterns match the variable-assignment idioms used to inline the
// listing payload into the page.
var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.xhrData\s*=\s*(?:'(?P<sq>[^']*)'|"(?P<dq>(?:[^"\\]|\\.)*)"|(?P<obj>\{.*?\}|\[.*?\]))\s*;`),
	regexp.MustCompile(`(?s)var\s+(?:vehiculos|listado|coches|modelos)\s*=\s*(\{.*?\}|\[.*?\])\s*;`),
	regexp.MustCompile(`(?s)data-json\s*=\s*'(\{.*?\}|\[.*?\])'`),
}

// selectorFallbacks is the prioritized candidate list for structural HTML
// extraction. The first selector matching at least one element wins.
var selectorFallbacks = []string{".car-item", ".vehicle-card", "[data-idcoche]", "[data-id]"}

// Parse extracts raw records from a response body. Pure function: no state,
// no retries. The caller decides whether a fresh fetch is worth it.
func Parse(raw []byte) ([]dtos.RawRecord, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, ErrNoData
	}

	if records := parseJSON(body, true); len(records) > 0 {
		return records, nil
	}
	if records := parseInlineScript(body); len(records) > 0 {
		return records, nil
	}
	if records := parseHTML(body); len(records) > 0 {
		return records, nil
	}

	return nil, ErrNoData
}

func decodeJSONObject(body []byte) map[string]interface{} {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	return obj
}

func decodeJSONString(body []byte) []byte {
	var inner string
	if err := json.Unmarshal(body, &inner); err != nil {
		return nil
	}
	trimmed := bytes.TrimSpace([]byte(inner))
	if len(trimmed) == 0 {
		return nil
	}
	return trimmed
}

// parseJSON handles strategies 1 and 2: a structured listing object, a bare
// array, or a JSON-encoded string wrapping either (double decode, one level).
func parseJSON(body []byte, allowDoubleDecode bool) []dtos.RawRecord {
	switch body[0] {
	case '{':
		var obj map[string]interface{}
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil
		}
		return recordsFromObject(obj)
	case '[':
		var arr []interface{}
		if err := json.Unmarshal(body, &arr); err != nil {
			return nil
		}
		return recordsFromArray(arr, "")
	case '"':
		if !allowDoubleDecode {
			return nil
		}
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil
		}
		trimmed := bytes.TrimSpace([]byte(inner))
		if len(trimmed) == 0 {
			return nil
		}
		return parseJSON(trimmed, false)
	}
	return nil
}

func recordsFromObject(obj map[string]interface{}) []dtos.RawRecord {
	for _, key := range listingKeys {
		if arr, ok := obj[key].([]interface{}); ok {
			if records := recordsFromArray(arr, ""); len(records) > 0 {
				return records
			}
		}
	}

	if arr, ok := obj["modelos"].([]interface{}); ok {
		return recordsFromModels(arr)
	}

	// A single-record response (detail endpoint) is an object carrying the
	// vehicle fields directly.
	rec := dtos.RawRecord(obj)
	if rec.Has("idcoche", "id", "vehicle_id") {
		return []dtos.RawRecord{rec}
	}
	return nil
}

func recordsFromArray(arr []interface{}, modelName string) []dtos.RawRecord {
	records := make([]dtos.RawRecord, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		rec := dtos.RawRecord(obj)
		if modelName != "" && !rec.Has("modelo", "model", "nombre") {
			rec["modelo"] = modelName
		}
		records = append(records, rec)
	}
	return records
}

// recordsFromModels flattens a per-model index. A model entry that carries
// an itemized vehicle list contributes those records; an entry with only an
// availability count synthesizes count-many placeholder records, each with a
// derived identifier and the model's flat price. The placeholder is the only
// way to represent "N units available, no per-unit detail".
func recordsFromModels(arr []interface{}) []dtos.RawRecord {
	var records []dtos.RawRecord

	for _, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		model := dtos.RawRecord(obj)
		name := model.String("nombre", "name", "modelo", "model")
		if name == "" {
			continue
		}

		itemized := false
		for _, key := range nestedListingKeys {
			if nested, ok := obj[key].([]interface{}); ok && len(nested) > 0 {
				records = append(records, recordsFromArray(nested, name)...)
				itemized = true
				break
			}
		}
		if itemized {
			continue
		}

		count := normalizer.ParseCount(model.String("disponibles", "count", "available"))
		price := normalizer.ParsePrice(model.String("precio", "price"))
		slug := strings.ToLower(strings.ReplaceAll(name, " ", "_"))

		for i := 0; i < count; i++ {
			records = append(records, dtos.RawRecord{
				"idcoche":     fmt.Sprintf("%s-%d", slug, i),
				"modelo":      name,
				"precio":      price,
				"placeholder": true,
			})
		}
	}

	return records
}

// parseInlineScript (strategy 3) looks for the known variable-assignment
// idioms and feeds the captured blob back through the JSON strategies.
func parseInlineScript(body []byte) []dtos.RawRecord {
	for _, pattern := range scriptPatterns {
		match := pattern.FindSubmatch(body)
		if match == nil {
			continue
		}
		var blob []byte
		if dq := pattern.SubexpIndex("dq"); dq >= 0 && len(match[dq]) > 0 {
			// Double-quoted JS string: the payload is still escaped
			// (`"{\"vehiculos\":...}"`). Put the quotes back so the
			// double-decode path unescapes it as a JSON string.
			blob = append(append([]byte{'"'}, match[dq]...), '"')
		} else {
			// Otherwise the last non-empty capture group holds the payload.
			for i := len(match) - 1; i > 0; i-- {
				if len(match[i]) > 0 {
					blob = match[i]
					break
				}
			}
		}
		blob = bytes.TrimSpace(blob)
		if len(blob) == 0 {
			continue
		}
		if records := parseJSON(blob, true); len(records) > 0 {
			return records
		}
	}
	return nil
}

// parseHTML (strategy 4) walks the selector fallback list and, on the first
// selector producing elements, lifts identifier, title, price and link out
// of the markup.
func parseHTML(body []byte) []dtos.RawRecord {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	for _, selector := range selectorFallbacks {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}

		var records []dtos.RawRecord
		sel.Each(func(_ int, el *goquery.Selection) {
			id := firstAttr(el, "data-idcoche", "data-id", "id")
			if id == "" {
				return
			}
			rec := dtos.RawRecord{"idcoche": id}
			if title := strings.TrimSpace(el.Find(".title, h2, h3").First().Text()); title != "" {
				rec["titulo"] = title
			}
			if price := strings.TrimSpace(el.Find(".price, .precio").First().Text()); price != "" {
				rec["precio"] = price
			}
			if href, ok := el.Find("a").First().Attr("href"); ok {
				rec["url"] = href
			}
			if model, ok := el.Attr("data-modelo"); ok {
				rec["modelo"] = model
			}
			records = append(records, rec)
		})

		if len(records) > 0 {
			return records
		}
	}
	return nil
}

func firstAttr(el *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := el.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
