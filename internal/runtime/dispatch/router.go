// Package dispatch hands a decoded query to the handler for its kind.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/drblury/geobridge/internal/runtime/models"
)

// ErrUnroutable means a query reached the router without a handler for its
// kind. The decoder only emits routable queries, so this indicates a wiring
// defect.
var ErrUnroutable = errors.New("dispatch: query is not routable")

// CountryHandler answers a country search.
type CountryHandler func(ctx context.Context, q models.CountryQuery) (models.Response, error)

// LocalityHandler answers a locality search.
type LocalityHandler func(ctx context.Context, q models.LocalityQuery) (models.Response, error)

// Router maps each query kind onto exactly one handler. It performs no method
// checks of its own.
type Router struct {
	Country  CountryHandler
	Locality LocalityHandler
}

// Resolver is the subset of the lookup gateway the router can be built from.
type Resolver interface {
	SearchCountries(ctx context.Context, q models.CountryQuery) (models.CountrySearchResponse, error)
	SearchLocalities(ctx context.Context, q models.LocalityQuery) (models.LocalitySearchResponse, error)
}

// NewRouter wires both handlers to r.
func NewRouter(r Resolver) *Router {
	return &Router{
		Country: func(ctx context.Context, q models.CountryQuery) (models.Response, error) {
			resp, err := r.SearchCountries(ctx, q)
			if err != nil {
				return nil, err
			}
			return resp, nil
		},
		Locality: func(ctx context.Context, q models.LocalityQuery) (models.Response, error) {
			resp, err := r.SearchLocalities(ctx, q)
			if err != nil {
				return nil, err
			}
			return resp, nil
		},
	}
}

// Route invokes the handler registered for q's kind.
func (r *Router) Route(ctx context.Context, q models.Query) (models.Response, error) {
	if r == nil {
		return nil, ErrUnroutable
	}
	switch v := q.(type) {
	case models.CountryQuery:
		if r.Country == nil {
			return nil, fmt.Errorf("%w: no %s handler", ErrUnroutable, v.Kind())
		}
		return r.Country(ctx, v)
	case *models.CountryQuery:
		if v == nil {
			return nil, ErrUnroutable
		}
		return r.Route(ctx, *v)
	case models.LocalityQuery:
		if r.Locality == nil {
			return nil, fmt.Errorf("%w: no %s handler", ErrUnroutable, v.Kind())
		}
		return r.Locality(ctx, v)
	case *models.LocalityQuery:
		if v == nil {
			return nil, ErrUnroutable
		}
		return r.Route(ctx, *v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnroutable, q)
	}
}
