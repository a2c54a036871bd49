package gateway

import (
	"bytes"
	"fmt"

	"github.com/drblury/geobridge/internal/runtime/jsoncodec"
	"github.com/drblury/geobridge/internal/runtime/models"
)

type paginationBlock struct {
	Total      uint32 `json:"total"`
	Page       uint32 `json:"page"`
	TotalPages uint32 `json:"totalPages"`
}

func (p *paginationBlock) toModel() models.Pagination {
	if p == nil {
		return models.Pagination{}.WithDefaults()
	}
	return models.Pagination{Total: p.Total, Page: p.Page, TotalPages: p.TotalPages}.WithDefaults()
}

type countryRecord struct {
	CountryCode   string `json:"country_code"`
	CountryName   string `json:"country_name"`
	LocalityCount uint32 `json:"locality_count"`
}

type countryPage struct {
	Data       []countryRecord  `json:"data"`
	Pagination *paginationBlock `json:"pagination"`
}

type localityRecord struct {
	ID        recordID `json:"id"`
	Name      string   `json:"name"`
	Country   string   `json:"country"`
	FileSize  *uint64  `json:"fileSize"`
	FileSize2 *uint64  `json:"file_size"`
}

type localityPage struct {
	Data       []localityRecord `json:"data"`
	Pagination *paginationBlock `json:"pagination"`
}

// recordID accepts a JSON string or number. Numbers keep their literal text.
type recordID struct {
	value string
	set   bool
}

func (r *recordID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*r = recordID{}
	case trimmed[0] == '"':
		var s string
		if err := jsoncodec.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = recordID{value: s, set: true}
	case trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9'):
		*r = recordID{value: string(trimmed), set: true}
	default:
		return fmt.Errorf("id must be a string or a number, got %s", trimmed)
	}
	return nil
}

func (p countryPage) toResponse(queryID string) models.CountrySearchResponse {
	countries := make([]models.Country, 0, len(p.Data))
	for _, rec := range p.Data {
		countries = append(countries, models.Country{
			Code:          rec.CountryCode,
			Name:          rec.CountryName,
			LocalityCount: rec.LocalityCount,
		})
	}
	return models.CountrySearchResponse{
		QueryID:    queryID,
		Countries:  countries,
		Pagination: p.Pagination.toModel(),
	}
}

func (p localityPage) toResponse(queryID string) (models.LocalitySearchResponse, error) {
	localities := make([]models.Locality, 0, len(p.Data))
	for i, rec := range p.Data {
		if !rec.ID.set {
			return models.LocalitySearchResponse{}, fmt.Errorf("%w: locality %d has no id", ErrMalformedPayload, i)
		}
		var size uint64
		switch {
		case rec.FileSize != nil:
			size = *rec.FileSize
		case rec.FileSize2 != nil:
			size = *rec.FileSize2
		}
		localities = append(localities, models.Locality{
			ID:       rec.ID.value,
			Name:     rec.Name,
			Country:  rec.Country,
			FileSize: size,
		})
	}
	return models.LocalitySearchResponse{
		QueryID:    queryID,
		Localities: localities,
		Pagination: p.Pagination.toModel(),
	}, nil
}
