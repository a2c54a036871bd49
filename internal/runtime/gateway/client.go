// Package gateway translates decoded queries into requests against the
// downstream lookup service and maps its JSON payloads back onto responses.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/geobridge/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/geobridge/internal/runtime/logging"
	"github.com/drblury/geobridge/internal/runtime/models"
)

const maxBodyBytes = 8 << 20

var (
	ErrStatus           = errors.New("gateway: unexpected status")
	ErrMalformedPayload = errors.New("gateway: malformed payload")
	ErrCircuitOpen      = errors.New("gateway: circuit open")
	ErrUnsupportedQuery = errors.New("gateway: unsupported query")
)

// StatusError reports a non-2xx answer from the lookup service.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("gateway: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("gateway: unexpected status %d: %s", e.Code, e.Detail)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// BreakerSettings configures the optional circuit breaker.
type BreakerSettings struct {
	Enabled bool
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// Options configures a Client. Only BaseURL is required.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout bounds each request. Zero leaves requests unbounded.
	Timeout time.Duration
	Breaker BreakerSettings
	Logger  loggingpkg.ServiceLogger
}

// Client talks to the lookup service.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  loggingpkg.ServiceLogger
	tracer  trace.Tracer
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: base URL %q must be absolute", opts.BaseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	base.RawPath = strings.TrimSuffix(base.RawPath, "/")
	base.RawQuery = ""

	c := &Client{
		base:    base,
		http:    opts.HTTPClient,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		tracer:  otel.Tracer("geobridge/gateway"),
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = loggingpkg.NopLogger()
	}
	if opts.Breaker.Enabled {
		c.breaker = newBreaker(opts.Breaker, c.logger)
	}
	return c, nil
}

func newBreaker(cfg BreakerSettings, logger loggingpkg.ServiceLogger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "lookup",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Lookup circuit breaker changed state", loggingpkg.LogFields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
}

// SearchCountries lists countries matching q.
func (c *Client) SearchCountries(ctx context.Context, q models.CountryQuery) (models.CountrySearchResponse, error) {
	u := c.endpoint(listParams(q.Text, q.Page, q.Limit), "countries")

	var page countryPage
	if err := c.get(ctx, "countries", u, &page); err != nil {
		return models.CountrySearchResponse{}, err
	}
	return page.toResponse(q.ID), nil
}

// SearchLocalities lists the localities of q.CountryCode matching q.
func (c *Client) SearchLocalities(ctx context.Context, q models.LocalityQuery) (models.LocalitySearchResponse, error) {
	u := c.endpoint(listParams(q.Text, q.Page, q.Limit), "countries", url.PathEscape(q.CountryCode), "localities")

	var page localityPage
	if err := c.get(ctx, "localities", u, &page); err != nil {
		return models.LocalitySearchResponse{}, err
	}
	return page.toResponse(q.ID)
}

// Resolve answers any query variant.
func (c *Client) Resolve(ctx context.Context, q models.Query) (models.Response, error) {
	switch v := q.(type) {
	case models.CountryQuery:
		return c.SearchCountries(ctx, v)
	case models.LocalityQuery:
		return c.SearchLocalities(ctx, v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedQuery, q)
	}
}

// listParams forwards only the filters that are set.
func listParams(text string, page, limit uint32) url.Values {
	params := url.Values{}
	if text != "" {
		params.Set("q", text)
	}
	if page != 0 {
		params.Set("page", strconv.FormatUint(uint64(page), 10))
	}
	if limit != 0 {
		params.Set("limit", strconv.FormatUint(uint64(limit), 10))
	}
	return params
}

// endpoint appends already-escaped segments to the base path. Segments are
// not cleaned so a country code is sent exactly as received.
func (c *Client) endpoint(params url.Values, segments ...string) *url.URL {
	u := *c.base
	escaped := u.EscapedPath() + "/" + strings.Join(segments, "/")
	if unescaped, err := url.PathUnescape(escaped); err == nil {
		u.Path = unescaped
		u.RawPath = escaped
	}
	u.RawQuery = params.Encode()
	return &u
}

func (c *Client) get(ctx context.Context, op string, u *url.URL, dst any) error {
	ctx, span := c.tracer.Start(ctx, "lookup."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", http.MethodGet),
		attribute.String("http.url", u.String()),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	call := func() (interface{}, error) {
		return nil, c.fetch(ctx, u, dst)
	}

	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
	} else {
		_, err = call()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, u *url.URL, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("gateway: read body: %w", err)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Detail: errorDetail(body)}
	}
	if err := jsoncodec.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// errorDetail pulls a human readable message out of an error body without
// committing to its shape.
func errorDetail(body []byte) string {
	return jsoncodec.FirstString(body, "error.message", "error", "message", "detail")
}
