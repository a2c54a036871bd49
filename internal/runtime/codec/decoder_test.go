package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/drblury/geobridge/internal/runtime/models"
	"github.com/drblury/geobridge/internal/runtime/schema"
)

func encodeQuery(t *testing.T, q models.Query) []byte {
	t.Helper()
	raw, err := NewEncoder(nil).EncodeQuery(q)
	require.NoError(t, err)
	return raw
}

func TestDecodeCountryQuery(t *testing.T) {
	raw := encodeQuery(t, models.CountryQuery{ID: "q1", Method: models.MethodSearchCountry, Text: "fra", Page: 2, Limit: 5})

	res := NewDecoder(nil, nil).Decode(raw)

	require.Equal(t, OutcomeMatched, res.Outcome)
	assert.Equal(t, schema.CountrySearchQuery, res.Schema)
	assert.Equal(t, models.CountryQuery{ID: "q1", Method: models.MethodSearchCountry, Text: "fra", Page: 2, Limit: 5}, res.Query)
}

func TestDecodeLocalityQueryFallsThroughCountryFalsePositive(t *testing.T) {
	want := models.LocalityQuery{ID: "q2", Method: models.MethodSearchLocality, CountryCode: "FR", Text: "par", Page: 3, Limit: 10}
	raw := encodeQuery(t, want)

	res := NewDecoder(nil, nil).Decode(raw)

	require.Equal(t, OutcomeMatched, res.Outcome)
	assert.Equal(t, schema.LocalitySearchQuery, res.Schema)
	assert.Equal(t, want, res.Query)
}

func TestDecodeCountryShapedBytesDeclaringLocalityAreRetriedAsLocality(t *testing.T) {
	// Bytes built with the country layout but declaring search_locality must
	// never reach the country handler.
	raw := encodeQuery(t, models.CountryQuery{ID: "q3", Method: models.MethodSearchLocality, Text: "DE", Page: 4, Limit: 7})

	res := NewDecoder(nil, nil).Decode(raw)

	require.Equal(t, OutcomeMatched, res.Outcome)
	loc, ok := res.Query.(models.LocalityQuery)
	require.True(t, ok, "expected locality query, got %T", res.Query)
	assert.Equal(t, "q3", loc.ID)
	assert.Equal(t, "DE", loc.CountryCode) // field 3 under the locality layout
	assert.Equal(t, uint32(7), loc.Page)   // field 5 under the locality layout
}

func TestDecodeMissingCorrelationFields(t *testing.T) {
	cases := map[string]models.Query{
		"country without id":      models.CountryQuery{Method: models.MethodSearchCountry, Text: "x"},
		"country without method":  models.CountryQuery{ID: "q1", Text: "x"},
		"locality without id":     models.LocalityQuery{Method: models.MethodSearchLocality, CountryCode: "FR"},
		"locality without method": models.LocalityQuery{ID: "q1", CountryCode: "FR"},
	}

	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			res := NewDecoder(nil, nil).Decode(encodeQuery(t, q))
			assert.Nil(t, res.Query)
			assert.Equal(t, OutcomeMissingFields, res.Outcome)
			assert.ErrorIs(t, res.Err, schema.ErrMissingField)
		})
	}
}

func TestDecodeUnknownMethodUnderCountrySchemaIsTerminal(t *testing.T) {
	raw := encodeQuery(t, models.CountryQuery{ID: "q1", Method: "delete_everything"})

	res := NewDecoder(nil, nil).Decode(raw)

	assert.Nil(t, res.Query)
	assert.Equal(t, OutcomeUnknownMethod, res.Outcome)
	assert.Equal(t, schema.CountrySearchQuery, res.Schema)
	assert.Equal(t, "delete_everything", res.Method)
}

func TestDecodeInconsistentMethodUnderLocalitySchema(t *testing.T) {
	// With the stock layouts every locality-shaped search_country payload is
	// also a valid country query, so the branch is exercised with a registry
	// whose country layout cannot carry a string method.
	defs := make([]schema.Definition, len(schema.Definitions))
	copy(defs, schema.Definitions)
	for i, def := range defs {
		if def.Name != schema.CountrySearchQuery {
			continue
		}
		fields := make([]schema.Field, len(def.Fields))
		copy(fields, def.Fields)
		fields[1].Kind = schema.KindUint32
		defs[i].Fields = fields
	}
	reg, err := schema.New(defs)
	require.NoError(t, err)

	raw := encodeQuery(t, models.LocalityQuery{ID: "q1", Method: models.MethodSearchCountry, CountryCode: "FR"})
	res := NewDecoder(reg, nil).Decode(raw)

	assert.Nil(t, res.Query)
	assert.Equal(t, OutcomeInconsistentMethod, res.Outcome)
	assert.Equal(t, schema.LocalitySearchQuery, res.Schema)
}

func TestDecodeUnknownMethodUnderLocalitySchema(t *testing.T) {
	defs := make([]schema.Definition, len(schema.Definitions))
	copy(defs, schema.Definitions)
	for i, def := range defs {
		if def.Name == schema.CountrySearchQuery {
			fields := make([]schema.Field, len(def.Fields))
			copy(fields, def.Fields)
			fields[1].Kind = schema.KindUint32
			defs[i].Fields = fields
		}
	}
	reg, err := schema.New(defs)
	require.NoError(t, err)

	raw := encodeQuery(t, models.LocalityQuery{ID: "q1", Method: "count", CountryCode: "FR"})
	res := NewDecoder(reg, nil).Decode(raw)

	assert.Equal(t, OutcomeUnknownMethod, res.Outcome)
	assert.Equal(t, schema.LocalitySearchQuery, res.Schema)
}

func TestDecodeStructuralFailureUnderBothSchemas(t *testing.T) {
	cases := map[string][]byte{
		"truncated string": {0x0a, 0x05, 'a'},
		"bad tag":          {0x00},
		"garbage varint":   {0x08, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res := NewDecoder(nil, nil).Decode(raw)
			assert.Nil(t, res.Query)
			assert.Equal(t, OutcomeNoMatch, res.Outcome)
			assert.Error(t, res.Err)
		})
	}
}

func TestDecodeAcceptsNonUTF8Text(t *testing.T) {
	var raw []byte
	raw = protowire.AppendTag(raw, 1, protowire.BytesType)
	raw = protowire.AppendString(raw, "q1")
	raw = protowire.AppendTag(raw, 2, protowire.BytesType)
	raw = protowire.AppendString(raw, string(models.MethodSearchCountry))
	raw = protowire.AppendTag(raw, 3, protowire.BytesType)
	raw = protowire.AppendString(raw, "fr\xffa")

	res := NewDecoder(nil, nil).Decode(raw)

	require.Equal(t, OutcomeMatched, res.Outcome, "err: %v", res.Err)
	assert.Equal(t, models.CountryQuery{ID: "q1", Method: models.MethodSearchCountry, Text: "fr\xffa"}, res.Query)
}

func TestDecodeEmptyPayload(t *testing.T) {
	res := NewDecoder(nil, nil).Decode(nil)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrEmptyPayload)
}

func TestDecodeIgnoresOwnResponses(t *testing.T) {
	enc := NewEncoder(nil)
	dec := NewDecoder(nil, nil)

	empty, err := enc.EncodeResponse(models.CountrySearchResponse{QueryID: "q1", Pagination: models.Pagination{Page: 1, TotalPages: 1}})
	require.NoError(t, err)
	res := dec.Decode(empty)
	assert.Nil(t, res.Query)
	assert.Equal(t, OutcomeMissingFields, res.Outcome)

	withCountry, err := enc.EncodeResponse(models.CountrySearchResponse{
		QueryID:    "q1",
		Countries:  []models.Country{{Code: "FR", Name: "France", LocalityCount: 3}},
		Pagination: models.Pagination{Total: 1, Page: 1, TotalPages: 1},
	})
	require.NoError(t, err)
	res = dec.Decode(withCountry)
	assert.Nil(t, res.Query)
	assert.Equal(t, OutcomeUnknownMethod, res.Outcome)

	withLocality, err := enc.EncodeResponse(models.LocalitySearchResponse{
		QueryID:    "q2",
		Localities: []models.Locality{{ID: "7", Name: "Paris", Country: "FR", FileSize: 1024}},
		Pagination: models.Pagination{Total: 1, Page: 1, TotalPages: 1},
	})
	require.NoError(t, err)
	res = dec.Decode(withLocality)
	assert.Nil(t, res.Query)
	assert.NotEqual(t, OutcomeMatched, res.Outcome)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "no_match", OutcomeNoMatch.String())
	assert.Equal(t, "matched", OutcomeMatched.String())
	assert.Equal(t, "missing_fields", OutcomeMissingFields.String())
	assert.Equal(t, "unknown_method", OutcomeUnknownMethod.String())
	assert.Equal(t, "inconsistent_method", OutcomeInconsistentMethod.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
