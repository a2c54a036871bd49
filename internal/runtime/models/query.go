// Package models defines the typed query and response variants exchanged on
// the bridge topic. Constructors enforce the field-presence invariants so a
// value of these types is always safe to dispatch.
package models

import (
	"errors"
	"fmt"
)

var (
	ErrMissingQueryID     = errors.New("models: query_id is required")
	ErrMissingQueryMethod = errors.New("models: query_method is required")
)

// Kind tells which schema family a query or response belongs to.
type Kind int

const (
	KindCountry Kind = iota + 1
	KindLocality
)

func (k Kind) String() string {
	switch k {
	case KindCountry:
		return "country"
	case KindLocality:
		return "locality"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Method is the declared query_method tag.
type Method string

const (
	MethodSearchCountry  Method = "search_country"
	MethodSearchLocality Method = "search_locality"
)

// Query is one of CountryQuery or LocalityQuery.
type Query interface {
	Kind() Kind
	CorrelationID() string
	QueryMethod() Method
	isQuery()
}

// CountryQuery lists countries, optionally filtered by free text.
type CountryQuery struct {
	ID     string
	Method Method
	Text   string
	Page   uint32
	Limit  uint32
}

// NewCountryQuery validates the correlation fields and builds a CountryQuery.
func NewCountryQuery(id string, method Method, text string, page, limit uint32) (CountryQuery, error) {
	if err := checkCorrelation(id, method); err != nil {
		return CountryQuery{}, err
	}
	return CountryQuery{ID: id, Method: method, Text: text, Page: page, Limit: limit}, nil
}

func (CountryQuery) Kind() Kind              { return KindCountry }
func (q CountryQuery) CorrelationID() string { return q.ID }
func (q CountryQuery) QueryMethod() Method   { return q.Method }
func (CountryQuery) isQuery()                {}

// LocalityQuery lists the localities of one country.
type LocalityQuery struct {
	ID          string
	Method      Method
	CountryCode string
	Text        string
	Page        uint32
	Limit       uint32
}

// NewLocalityQuery validates the correlation fields and builds a LocalityQuery.
func NewLocalityQuery(id string, method Method, countryCode, text string, page, limit uint32) (LocalityQuery, error) {
	if err := checkCorrelation(id, method); err != nil {
		return LocalityQuery{}, err
	}
	return LocalityQuery{ID: id, Method: method, CountryCode: countryCode, Text: text, Page: page, Limit: limit}, nil
}

func (LocalityQuery) Kind() Kind              { return KindLocality }
func (q LocalityQuery) CorrelationID() string { return q.ID }
func (q LocalityQuery) QueryMethod() Method   { return q.Method }
func (LocalityQuery) isQuery()                {}

func checkCorrelation(id string, method Method) error {
	if id == "" {
		return ErrMissingQueryID
	}
	if method == "" {
		return ErrMissingQueryMethod
	}
	return nil
}
