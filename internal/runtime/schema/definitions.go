package schema

import "google.golang.org/protobuf/types/descriptorpb"

// Package is the protobuf package the bridge schemas are compiled into. Peers
// only depend on field numbers, so the name never reaches the wire.
const Package = "geobridge"

// Name identifies a schema inside the registry.
type Name string

const (
	Country                Name = "Country"
	Locality               Name = "Locality"
	CountrySearchQuery     Name = "CountrySearchQuery"
	CountrySearchResponse  Name = "CountrySearchResponse"
	LocalitySearchQuery    Name = "LocalitySearchQuery"
	LocalitySearchResponse Name = "LocalitySearchResponse"
)

// Field names shared by several schemas.
const (
	FieldQueryID     = "query_id"
	FieldQueryMethod = "query_method"
	FieldQuery       = "query"
	FieldPage        = "page"
	FieldLimit       = "limit"
	FieldCountryCode = "country_code"
	FieldCountryName = "country_name"
	FieldTotal       = "total"
	FieldTotalPages  = "total_pages"
)

// Kind is the primitive wire type of a field.
type Kind int

const (
	KindString Kind = iota + 1
	KindUint32
	KindUint64
	KindMessage
)

// Field describes one entry of a schema layout.
type Field struct {
	Name     string
	Number   int32
	Kind     Kind
	Message  Name // element schema for KindMessage
	Repeated bool
	Required bool
}

// Definition is a named, ordered field layout.
type Definition struct {
	Name   Name
	Fields []Field
}

// Definitions lists every schema the bridge understands. Field numbers are the
// interoperability contract with existing peers and must never change.
var Definitions = []Definition{
	{
		Name: Country,
		Fields: []Field{
			{Name: FieldCountryCode, Number: 1, Kind: KindString},
			{Name: FieldCountryName, Number: 2, Kind: KindString},
			{Name: "locality_count", Number: 3, Kind: KindUint32},
		},
	},
	{
		Name: Locality,
		Fields: []Field{
			{Name: "id", Number: 1, Kind: KindString},
			{Name: "name", Number: 2, Kind: KindString},
			{Name: "country", Number: 3, Kind: KindString},
			{Name: "file_size", Number: 4, Kind: KindUint64},
		},
	},
	{
		Name: CountrySearchQuery,
		Fields: []Field{
			{Name: FieldQueryID, Number: 1, Kind: KindString, Required: true},
			{Name: FieldQueryMethod, Number: 2, Kind: KindString, Required: true},
			{Name: FieldQuery, Number: 3, Kind: KindString},
			{Name: FieldPage, Number: 4, Kind: KindUint32},
			{Name: FieldLimit, Number: 5, Kind: KindUint32},
		},
	},
	{
		Name: CountrySearchResponse,
		Fields: []Field{
			{Name: FieldQueryID, Number: 1, Kind: KindString, Required: true},
			{Name: "countries", Number: 2, Kind: KindMessage, Message: Country, Repeated: true},
			{Name: FieldTotal, Number: 3, Kind: KindUint32},
			{Name: FieldPage, Number: 4, Kind: KindUint32},
			{Name: FieldTotalPages, Number: 5, Kind: KindUint32},
		},
	},
	{
		Name: LocalitySearchQuery,
		Fields: []Field{
			{Name: FieldQueryID, Number: 1, Kind: KindString, Required: true},
			{Name: FieldQueryMethod, Number: 2, Kind: KindString, Required: true},
			{Name: FieldCountryCode, Number: 3, Kind: KindString},
			{Name: FieldQuery, Number: 4, Kind: KindString},
			{Name: FieldPage, Number: 5, Kind: KindUint32},
			{Name: FieldLimit, Number: 6, Kind: KindUint32},
		},
	},
	{
		Name: LocalitySearchResponse,
		Fields: []Field{
			{Name: FieldQueryID, Number: 1, Kind: KindString, Required: true},
			{Name: "localities", Number: 2, Kind: KindMessage, Message: Locality, Repeated: true},
			{Name: FieldTotal, Number: 3, Kind: KindUint32},
			{Name: FieldPage, Number: 4, Kind: KindUint32},
			{Name: FieldTotalPages, Number: 5, Kind: KindUint32},
		},
	},
}

func (k Kind) descriptorType() (descriptorpb.FieldDescriptorProto_Type, bool) {
	switch k {
	case KindString:
		return descriptorpb.FieldDescriptorProto_TYPE_STRING, true
	case KindUint32:
		return descriptorpb.FieldDescriptorProto_TYPE_UINT32, true
	case KindUint64:
		return descriptorpb.FieldDescriptorProto_TYPE_UINT64, true
	case KindMessage:
		return descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, true
	default:
		return 0, false
	}
}
