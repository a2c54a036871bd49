package models

// Country is one record of a country search.
type Country struct {
	Code          string
	Name          string
	LocalityCount uint32
}

// Locality is one record of a locality search.
type Locality struct {
	ID       string
	Name     string
	Country  string
	FileSize uint64
}

// Pagination is the paging block attached to every response.
type Pagination struct {
	Total      uint32
	Page       uint32
	TotalPages uint32
}

// WithDefaults fills zero values: page and total pages default to 1, total
// stays 0.
func (p Pagination) WithDefaults() Pagination {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.TotalPages == 0 {
		p.TotalPages = 1
	}
	return p
}

// Response is one of CountrySearchResponse or LocalitySearchResponse.
type Response interface {
	Kind() Kind
	CorrelationID() string
	isResponse()
}

// CountrySearchResponse answers a CountryQuery.
type CountrySearchResponse struct {
	QueryID    string
	Countries  []Country
	Pagination Pagination
}

func (CountrySearchResponse) Kind() Kind              { return KindCountry }
func (r CountrySearchResponse) CorrelationID() string { return r.QueryID }
func (CountrySearchResponse) isResponse()             {}

// LocalitySearchResponse answers a LocalityQuery.
type LocalitySearchResponse struct {
	QueryID    string
	Localities []Locality
	Pagination Pagination
}

func (LocalitySearchResponse) Kind() Kind              { return KindLocality }
func (r LocalitySearchResponse) CorrelationID() string { return r.QueryID }
func (LocalitySearchResponse) isResponse()             {}
