package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/drblury/geobridge/internal/runtime/models"
	"github.com/drblury/geobridge/internal/runtime/schema"
)

var marshalOptions = proto.MarshalOptions{Deterministic: true}

// Encoder converts typed values into wire bytes using the registry layouts.
type Encoder struct {
	registry *schema.Registry
}

// NewEncoder returns an Encoder over reg, or over schema.Default when reg is nil.
func NewEncoder(reg *schema.Registry) *Encoder {
	if reg == nil {
		reg = schema.Default()
	}
	return &Encoder{registry: reg}
}

// SchemaFor returns the schema a response is encoded with.
func SchemaFor(resp models.Response) (schema.Name, error) {
	switch resp.(type) {
	case models.CountrySearchResponse, *models.CountrySearchResponse:
		return schema.CountrySearchResponse, nil
	case models.LocalitySearchResponse, *models.LocalitySearchResponse:
		return schema.LocalitySearchResponse, nil
	default:
		return "", fmt.Errorf("codec: unsupported response %T", resp)
	}
}

// EncodeResponse encodes resp with the response schema matching its kind.
func (e *Encoder) EncodeResponse(resp models.Response) ([]byte, error) {
	switch r := resp.(type) {
	case models.CountrySearchResponse:
		return e.encodeCountryResponse(r)
	case *models.CountrySearchResponse:
		if r == nil {
			return nil, fmt.Errorf("codec: nil %T", r)
		}
		return e.encodeCountryResponse(*r)
	case models.LocalitySearchResponse:
		return e.encodeLocalityResponse(r)
	case *models.LocalitySearchResponse:
		if r == nil {
			return nil, fmt.Errorf("codec: nil %T", r)
		}
		return e.encodeLocalityResponse(*r)
	default:
		return nil, fmt.Errorf("codec: unsupported response %T", resp)
	}
}

func (e *Encoder) encodeCountryResponse(r models.CountrySearchResponse) ([]byte, error) {
	msg, err := e.registry.NewMessage(schema.CountrySearchResponse)
	if err != nil {
		return nil, err
	}
	setString(msg, schema.FieldQueryID, r.QueryID)
	list := msg.Mutable(fieldOf(msg, "countries")).List()
	for _, c := range r.Countries {
		el := list.NewElement()
		m := el.Message()
		setString(m, schema.FieldCountryCode, c.Code)
		setString(m, schema.FieldCountryName, c.Name)
		setUint32(m, "locality_count", c.LocalityCount)
		list.Append(el)
	}
	setPagination(msg, r.Pagination)
	return marshalOptions.Marshal(msg)
}

func (e *Encoder) encodeLocalityResponse(r models.LocalitySearchResponse) ([]byte, error) {
	msg, err := e.registry.NewMessage(schema.LocalitySearchResponse)
	if err != nil {
		return nil, err
	}
	setString(msg, schema.FieldQueryID, r.QueryID)
	list := msg.Mutable(fieldOf(msg, "localities")).List()
	for _, l := range r.Localities {
		el := list.NewElement()
		m := el.Message()
		setString(m, "id", l.ID)
		setString(m, "name", l.Name)
		setString(m, "country", l.Country)
		m.Set(fieldOf(m, "file_size"), protoreflect.ValueOfUint64(l.FileSize))
		list.Append(el)
	}
	setPagination(msg, r.Pagination)
	return marshalOptions.Marshal(msg)
}

// EncodeQuery encodes q with its query schema. The bridge itself never sends
// queries; this serves clients and tests.
func (e *Encoder) EncodeQuery(q models.Query) ([]byte, error) {
	switch v := q.(type) {
	case models.CountryQuery:
		msg, err := e.registry.NewMessage(schema.CountrySearchQuery)
		if err != nil {
			return nil, err
		}
		setString(msg, schema.FieldQueryID, v.ID)
		setString(msg, schema.FieldQueryMethod, string(v.Method))
		setString(msg, schema.FieldQuery, v.Text)
		setUint32(msg, schema.FieldPage, v.Page)
		setUint32(msg, schema.FieldLimit, v.Limit)
		return marshalOptions.Marshal(msg)
	case models.LocalityQuery:
		msg, err := e.registry.NewMessage(schema.LocalitySearchQuery)
		if err != nil {
			return nil, err
		}
		setString(msg, schema.FieldQueryID, v.ID)
		setString(msg, schema.FieldQueryMethod, string(v.Method))
		setString(msg, schema.FieldCountryCode, v.CountryCode)
		setString(msg, schema.FieldQuery, v.Text)
		setUint32(msg, schema.FieldPage, v.Page)
		setUint32(msg, schema.FieldLimit, v.Limit)
		return marshalOptions.Marshal(msg)
	default:
		return nil, fmt.Errorf("codec: unsupported query %T", q)
	}
}

// DecodeResponse parses raw as the response schema of kind. The query_id of
// a response must be non-empty.
func (e *Encoder) DecodeResponse(kind models.Kind, raw []byte) (models.Response, error) {
	switch kind {
	case models.KindCountry:
		msg, err := e.unmarshal(schema.CountrySearchResponse, raw)
		if err != nil {
			return nil, err
		}
		resp := models.CountrySearchResponse{
			QueryID:    getString(msg, schema.FieldQueryID),
			Pagination: getPagination(msg),
		}
		list := msg.Get(fieldOf(msg, "countries")).List()
		for i := 0; i < list.Len(); i++ {
			m := list.Get(i).Message()
			resp.Countries = append(resp.Countries, models.Country{
				Code:          getString(m, schema.FieldCountryCode),
				Name:          getString(m, schema.FieldCountryName),
				LocalityCount: getUint32(m, "locality_count"),
			})
		}
		return resp, nil
	case models.KindLocality:
		msg, err := e.unmarshal(schema.LocalitySearchResponse, raw)
		if err != nil {
			return nil, err
		}
		resp := models.LocalitySearchResponse{
			QueryID:    getString(msg, schema.FieldQueryID),
			Pagination: getPagination(msg),
		}
		list := msg.Get(fieldOf(msg, "localities")).List()
		for i := 0; i < list.Len(); i++ {
			m := list.Get(i).Message()
			resp.Localities = append(resp.Localities, models.Locality{
				ID:       getString(m, "id"),
				Name:     getString(m, "name"),
				Country:  getString(m, "country"),
				FileSize: getUint64(m, "file_size"),
			})
		}
		return resp, nil
	default:
		return nil, fmt.Errorf("codec: unsupported response kind %s", kind)
	}
}

func (e *Encoder) unmarshal(name schema.Name, raw []byte) (protoreflect.Message, error) {
	msg, err := e.registry.NewMessage(name)
	if err != nil {
		return nil, err
	}
	if err := proto.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if err := e.registry.CheckRequired(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func setString(msg protoreflect.Message, name, v string) {
	msg.Set(fieldOf(msg, name), protoreflect.ValueOfString(v))
}

func setUint32(msg protoreflect.Message, name string, v uint32) {
	msg.Set(fieldOf(msg, name), protoreflect.ValueOfUint32(v))
}

func setPagination(msg protoreflect.Message, p models.Pagination) {
	setUint32(msg, schema.FieldTotal, p.Total)
	setUint32(msg, schema.FieldPage, p.Page)
	setUint32(msg, schema.FieldTotalPages, p.TotalPages)
}

func getPagination(msg protoreflect.Message) models.Pagination {
	return models.Pagination{
		Total:      getUint32(msg, schema.FieldTotal),
		Page:       getUint32(msg, schema.FieldPage),
		TotalPages: getUint32(msg, schema.FieldTotalPages),
	}
}
