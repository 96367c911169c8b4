// Package normalizer maps raw upstream records, whatever shape they arrived
// in, onto the canonical Vehicle entity. Extraction is alias-driven: every
// field has a priority list of known upstream names (the Spanish detail
// endpoint plus the English variants older responses used) and the first
// present, non-empty value wins. Normalization is best-effort: the only hard
// failure is a record with no derivable identity.
package normalizer

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/models/entities"
)

// ErrMissingIdentity is returned when no usable source identifier can be
// derived from a record. Fatal for that record only: without an identity the
// uniqueness invariant on vehicle_id cannot hold.
var ErrMissingIdentity = errors.New("record carries no usable source identifier")

const unknown = "Unknown"

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Context supplies what a single record cannot: which model listing it came
// from and the URL templates of the source.
type Context struct {
	Brand        string
	ModelName    string
	BaseURL      string
	ImageBaseURL string
}

// Normalize converts one raw record into a canonical Vehicle.
func Normalize(raw dtos.RawRecord, nctx Context) (*entities.Vehicle, error) {
	sourceID := raw.String("idcoche", "id", "source_id", "listing_id")
	if sourceID == "" {
		return nil, ErrMissingIdentity
	}

	brand := raw.String("marca", "brand")
	if brand == "" {
		brand = nctx.Brand
	}
	if brand == "" {
		brand = "KIA"
	}

	model := raw.String("modelo", "modelDisplayName", "model", "nombre")
	if model == "" {
		model = nctx.ModelName
	}
	if model == "" {
		model = unknown
	}

	version := raw.String("version")
	title := raw.String("titulo", "title")
	if title == "" {
		title = strings.TrimSpace(strings.Join([]string{brand, model, version}, " "))
	}

	v := &entities.Vehicle{
		VehicleID: VehicleID(brand, model, sourceID),
		SourceID:  sourceID,
		Brand:     brand,
		Model:     model,
		Version:   version,
		Title:     title,
		Year:      extractYear(raw, title),

		Price:     priceOf(raw, "precio", "price", "precio_financiado"),
		PriceCash: priceOf(raw, "precio_alcontado", "price_cash", "precio_contado"),

		Mileage: ParseNumber(raw.String("kilometros", "mileage", "km")),
		Power:   ParseNumber(raw.String("potencia", "power")),

		FuelType:      classification(raw, "combustible", "fuelType", "fuel_type"),
		Transmission:  classification(raw, "transmision", "transmissionType", "transmission"),
		ColorExterior: classification(raw, "color_exterior", "exteriorColorName", "color"),
		ColorInterior: classification(raw, "color_interior", "interiorColorName"),
		BodyType:      classification(raw, "carroceria", "bodyType", "body_type"),

		Images:   extractImages(raw, nctx.ImageBaseURL),
		Features: extractFeatures(raw),

		Dealer:         raw.String("concesionario", "dealer"),
		DealerLocation: raw.String("poblacion", "dealer_location", "dealerCity"),
		DealerEmail:    raw.String("emailconcesionario", "dealer_email"),
		DealerPhone:    raw.String("telefono", "dealer_phone"),
		DealerAddress:  raw.String("direccion", "dealer_address"),

		MatriculationDate: raw.String("matriculacion", "matriculation_date"),
		LicensePlate:      raw.String("matricula", "license_plate"),
		Warranty:          raw.String("garantia", "warranty"),
		EngineSize:        raw.String("cubicaje", "engine_size"),
		EmissionLabel:     raw.String("distintivo", "emission_label"),

		URL:      canonicalURL(raw, nctx.BaseURL, sourceID),
		IsActive: true,
	}

	return v, nil
}

// VehicleID derives the stable primary key from the identity triple. Never
// regenerated with a random or time-based component: re-ingesting the same
// upstream listing must always land on the same row.
func VehicleID(brand, model, sourceID string) string {
	return strings.ToLower(snake(brand) + "_" + snake(model) + "_" + sourceID)
}

func snake(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}

// priceOf reads a price that may arrive as a formatted string or as a bare
// JSON number (placeholder records synthesized by the parser).
func priceOf(raw dtos.RawRecord, keys ...string) float64 {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			if t >= 0 {
				return t
			}
		case int:
			if t >= 0 {
				return float64(t)
			}
		case string:
			if strings.TrimSpace(t) != "" {
				return ParsePrice(t)
			}
		}
	}
	return 0
}

func classification(raw dtos.RawRecord, keys ...string) string {
	if v := raw.String(keys...); v != "" {
		return v
	}
	return unknown
}

// extractYear uses an explicit year field when present and numeric, then
// falls back to a 4-digit sequence in the title.
func extractYear(raw dtos.RawRecord, title string) *int {
	if s := raw.String("any", "anio", "year"); s != "" {
		if y, err := strconv.Atoi(s); err == nil && y > 1900 && y < 2100 {
			return &y
		}
	}

	if match := yearPattern.FindString(title); match != "" {
		if y, err := strconv.Atoi(match); err == nil && y > 1900 && y <= time.Now().Year()+1 {
			return &y
		}
	}
	return nil
}

// extractImages handles the source's image shapes: a pipe-separated list of
// file names relative to the image base, a single absolute URL, or a plain
// array.
func extractImages(raw dtos.RawRecord, imageBase string) entities.StringList {
	if s := raw.String("imagenes"); s != "" {
		parts := strings.Split(s, "|")
		images := make(entities.StringList, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if isAbsoluteURL(p) {
				images = append(images, p)
			} else {
				images = append(images, strings.TrimRight(imageBase, "/")+"/"+p)
			}
		}
		return images
	}

	if list := raw.Strings("thumbnailImages", "images"); len(list) > 0 {
		return entities.StringList(list)
	}

	if s := raw.String("imagen"); s != "" {
		return entities.StringList{s}
	}
	return nil
}

func extractFeatures(raw dtos.RawRecord) entities.StringList {
	if list := raw.Strings("resumen_equipamiento_serie", "features"); len(list) > 0 {
		return entities.StringList(list)
	}

	if s := raw.String("resumen_equipamiento_serie", "features"); s != "" {
		parts := strings.Split(s, "|")
		features := make(entities.StringList, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				features = append(features, p)
			}
		}
		return features
	}
	return nil
}

// canonicalURL prefers a well-formed absolute URL from the record and
// otherwise synthesizes the detail page address from the base template, so
// the field is always derivable.
func canonicalURL(raw dtos.RawRecord, baseURL, sourceID string) string {
	if u := raw.String("url"); u != "" && isAbsoluteURL(u) {
		return u
	}
	return strings.TrimRight(baseURL, "/") + "/?idcoche=" + url.QueryEscape(sourceID)
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
