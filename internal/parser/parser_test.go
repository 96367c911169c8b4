package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_StructuredListing(t *testing.T) {
	body := []byte(`{"content":[
		{"id": 101, "modelDisplayName": "Sportage", "price": "17.990"},
		{"id": 102, "modelDisplayName": "Picanto", "price": "9.990"}
	]}`)

	records, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "101", records[0].String("id"))
	assert.Equal(t, "Sportage", records[0].String("modelDisplayName"))
}

func TestParse_SpanishListingKey(t *testing.T) {
	body := []byte(`{"vehiculos":[{"idcoche":"9001","modelo":"Niro"}]}`)

	records, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "9001", records[0].String("idcoche"))
}

func TestParse_DoubleEncodedString(t *testing.T) {
	// The endpoint some days returns the JSON payload encoded as a string.
	body := []byte(`"{\"vehiculos\":[{\"idcoche\":\"55\",\"modelo\":\"Rio\"}]}"`)

	records, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "55", records[0].String("idcoche"))
	assert.Equal(t, "Rio", records[0].String("modelo"))
}

func TestParse_ModelIndexSynthesizesPlaceholders(t *testing.T) {
	body := []byte(`{"modelos":[{"nombre":"Picanto","precio":"9.990","disponibles":"3"}]}`)

	records, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, records, 3, "3 disponibles must synthesize exactly 3 placeholder records")

	seen := map[string]bool{}
	for _, rec := range records {
		assert.Equal(t, "Picanto", rec.String("modelo"))
		assert.Equal(t, float64(9990), rec["precio"])
		id := rec.String("idcoche")
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "placeholder identifiers must be distinct")
		seen[id] = true
	}
}

func TestParse_ModelIndexWithItemizedVehicles(t *testing.T) {
	body := []byte(`{"modelos":[
		{"nombre":"Stonic","precio":"13.000","disponibles":"2","vehiculos":[
			{"idcoche":"71"},{"idcoche":"72"}
		]}
	]}`)

	records, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, records, 2, "itemized entries must win over count synthesis")
	assert.Equal(t, "Stonic", records[0].String("modelo"))
	assert.Equal(t, "71", records[0].String("idcoche"))
}

func TestParse_InlineScriptPayload(t *testing.T) {
	body := []byte(`<html><head><script>
		window.xhrData = {"vehiculos":[{"idcoche":"312","modelo":"XCeed"}]};
	</script></head><body></body></html>`)

	records, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "312", records[0].String("idcoche"))
}

func TestParse_InlineScriptQuotedPayloads(t *testing.T) {
	// The page builder inlines the raw XHR response text, which arrives as a
	// quoted JS string. Double quotes keep the JSON-escaped form; single
	// quotes carry the payload verbatim.
	cases := map[string][]byte{
		"double-quoted escaped": []byte(`<html><script>
			window.xhrData = "{\"vehiculos\":[{\"idcoche\":\"7\",\"modelo\":\"Niro\"}]}";
		</script></html>`),
		"single-quoted": []byte(`<html><script>
			window.xhrData = '{"vehiculos":[{"idcoche":"7","modelo":"Niro"}]}';
		</script></html>`),
	}

	for name, body := range cases {
		records, err := Parse(body)
		require.NoError(t, err, name)
		require.Len(t, records, 1, name)
		assert.Equal(t, "7", records[0].String("idcoche"), name)
		assert.Equal(t, "Niro", records[0].String("modelo"), name)
	}
}

func TestParse_HTMLSelectorFallback(t *testing.T) {
	body := []byte(`<html><body>
		<div class="vehicle-card" data-id="808" data-modelo="Sorento">
			<h3>KIA Sorento 2023</h3>
			<span class="price">35.390€</span>
			<a href="/kia/?idcoche=808">ver</a>
		</div>
		<div class="vehicle-card" data-id="809"><h3>KIA Sorento 2022</h3></div>
	</body></html>`)

	records, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "808", records[0].String("idcoche"))
	assert.Equal(t, "Sorento", records[0].String("modelo"))
	assert.Equal(t, "KIA Sorento 2023", records[0].String("titulo"))
	assert.Equal(t, "35.390€", records[0].String("precio"))
	assert.Equal(t, "/kia/?idcoche=808", records[0].String("url"))
}

func TestParse_DetailObject(t *testing.T) {
	body := []byte(`{"idcoche":"4410","modelo":"Ceed","precio":"12.999,00€","kilometros":"14.500 km"}`)

	records, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "4410", records[0].String("idcoche"))
}

func TestParse_NoData(t *testing.T) {
	cases := map[string][]byte{
		"empty body":        []byte(""),
		"whitespace":        []byte("   \n "),
		"unknown json keys": []byte(`{"foo":"bar"}`),
		"plain html":        []byte(`<html><body><p>mantenimiento</p></body></html>`),
		"broken json":       []byte(`{"vehiculos": [`),
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(body)
			assert.ErrorIs(t, err, ErrNoData)
		})
	}
}
