package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func TestDefaultRegistryExposesAllSchemas(t *testing.T) {
	reg := Default()

	assert.Equal(t, []Name{
		Country,
		Locality,
		CountrySearchQuery,
		CountrySearchResponse,
		LocalitySearchQuery,
		LocalitySearchResponse,
	}, reg.Names())
	assert.Same(t, reg, Default(), "default registry must be built once")
}

func TestFieldNumbersMatchWireContract(t *testing.T) {
	reg := Default()

	cases := map[Name]map[string]protoreflect.FieldNumber{
		CountrySearchQuery:     {"query_id": 1, "query_method": 2, "query": 3, "page": 4, "limit": 5},
		LocalitySearchQuery:    {"query_id": 1, "query_method": 2, "country_code": 3, "query": 4, "page": 5, "limit": 6},
		CountrySearchResponse:  {"query_id": 1, "countries": 2, "total": 3, "page": 4, "total_pages": 5},
		LocalitySearchResponse: {"query_id": 1, "localities": 2, "total": 3, "page": 4, "total_pages": 5},
		Country:                {"country_code": 1, "country_name": 2, "locality_count": 3},
		Locality:               {"id": 1, "name": 2, "country": 3, "file_size": 4},
	}

	for name, fields := range cases {
		md, err := reg.Descriptor(name)
		require.NoError(t, err, name)
		assert.Equal(t, len(fields), md.Fields().Len(), name)
		for field, number := range fields {
			fd := md.Fields().ByName(protoreflect.Name(field))
			require.NotNil(t, fd, "%s.%s", name, field)
			assert.Equal(t, number, fd.Number(), "%s.%s", name, field)
		}
	}

	md, _ := reg.Descriptor(LocalitySearchResponse)
	list := md.Fields().ByName("localities")
	assert.True(t, list.IsList())
	assert.Equal(t, protoreflect.FullName("geobridge.Locality"), list.Message().FullName())

	locality, _ := reg.Descriptor(Locality)
	assert.Equal(t, protoreflect.Uint64Kind, locality.Fields().ByName("file_size").Kind())
}

func TestStringsAreNotUTF8Validated(t *testing.T) {
	reg := Default()
	msg, err := reg.NewMessage(LocalitySearchQuery)
	require.NoError(t, err)

	raw := protowire.AppendTag(nil, 3, protowire.BytesType)
	raw = protowire.AppendString(raw, "F\xc3")
	require.NoError(t, proto.Unmarshal(raw, msg))

	fd := msg.Descriptor().Fields().ByName("country_code")
	assert.Equal(t, "F\xc3", msg.Get(fd).String())
}

func TestScalarsHaveImplicitPresence(t *testing.T) {
	reg := Default()
	msg, err := reg.NewMessage(CountrySearchResponse)
	require.NoError(t, err)

	fields := msg.Descriptor().Fields()
	assert.False(t, fields.ByName("page").HasPresence())
	assert.False(t, fields.ByName("query_id").HasPresence())

	// zero scalars stay off the wire
	msg.Set(fields.ByName("page"), protoreflect.ValueOfUint32(0))
	raw, err := proto.Marshal(msg)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestCheckRequired(t *testing.T) {
	reg := Default()
	msg, err := reg.NewMessage(CountrySearchQuery)
	require.NoError(t, err)

	err = reg.CheckRequired(msg)
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "query_id", missing.Field)
	assert.True(t, errors.Is(err, ErrMissingField))

	md := msg.Descriptor()
	msg.Set(md.Fields().ByName("query_id"), protoreflect.ValueOfString("q1"))
	err = reg.CheckRequired(msg)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "query_method", missing.Field)

	msg.Set(md.Fields().ByName("query_method"), protoreflect.ValueOfString("search_country"))
	assert.NoError(t, reg.CheckRequired(msg))

	assert.Equal(t, []string{"query_id", "query_method"}, reg.Required(LocalitySearchQuery))
	assert.Equal(t, []string{"query_id"}, reg.Required(CountrySearchResponse))
	assert.Empty(t, reg.Required(Country))
}

func TestUnknownSchema(t *testing.T) {
	_, err := Default().Descriptor("Planet")
	assert.ErrorIs(t, err, ErrUnknownSchema)

	_, err = Default().NewMessage("Planet")
	assert.ErrorIs(t, err, ErrUnknownSchema)
}

func TestNewRejectsMalformedDefinitions(t *testing.T) {
	cases := map[string][]Definition{
		"empty":          nil,
		"unnamed":        {{Fields: []Field{{Name: "a", Number: 1, Kind: KindString}}}},
		"duplicate name": {{Name: "A"}, {Name: "A"}},
		"unknown kind":   {{Name: "A", Fields: []Field{{Name: "a", Number: 1, Kind: Kind(42)}}}},
		"dup number": {{Name: "A", Fields: []Field{
			{Name: "a", Number: 1, Kind: KindString},
			{Name: "b", Number: 1, Kind: KindString},
		}}},
		"unresolved message": {{Name: "A", Fields: []Field{{Name: "a", Number: 1, Kind: KindMessage, Message: "Missing"}}}},
		"required list":      {{Name: "A", Fields: []Field{{Name: "a", Number: 1, Kind: KindString, Repeated: true, Required: true}}}},
	}

	for name, defs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(defs)
			assert.Error(t, err)
		})
	}

	assert.Panics(t, func() { MustNew(nil) })
}
