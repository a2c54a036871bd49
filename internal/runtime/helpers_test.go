package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	"github.com/drblury/geobridge/internal/runtime/codec"
	loggingpkg "github.com/drblury/geobridge/internal/runtime/logging"
	"github.com/drblury/geobridge/internal/runtime/models"
)

type logEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

// recordingLogger is a ServiceLogger that keeps every entry.
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (r *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	merged := loggingpkg.LogFields{}
	for k, v := range r.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordingLogger{mu: r.mu, entries: r.entries, fields: merged}
}

func (r *recordingLogger) add(level, msg string, err error, fields loggingpkg.LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, logEntry{level: level, msg: msg, err: err, fields: fields})
}

func (r *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	r.add("debug", msg, nil, fields)
}
func (r *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	r.add("info", msg, nil, fields)
}
func (r *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	r.add("error", msg, err, fields)
}
func (r *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	r.add("trace", msg, nil, fields)
}

func (r *recordingLogger) find(msg string) (logEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range *r.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

// stubResolver answers from canned values and counts calls.
type stubResolver struct {
	mu         sync.Mutex
	countries  models.CountrySearchResponse
	localities models.LocalitySearchResponse
	err        error
	calls      int
	lastQuery  models.Query
}

func (s *stubResolver) SearchCountries(ctx context.Context, q models.CountryQuery) (models.CountrySearchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastQuery = q
	if s.err != nil {
		return models.CountrySearchResponse{}, s.err
	}
	resp := s.countries
	resp.QueryID = q.ID
	return resp, nil
}

func (s *stubResolver) SearchLocalities(ctx context.Context, q models.LocalityQuery) (models.LocalitySearchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastQuery = q
	if s.err != nil {
		return models.LocalitySearchResponse{}, s.err
	}
	resp := s.localities
	resp.QueryID = q.ID
	return resp, nil
}

func (s *stubResolver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// routerFunc adapts a function to QueryRouter.
type routerFunc func(ctx context.Context, q models.Query) (models.Response, error)

func (f routerFunc) Route(ctx context.Context, q models.Query) (models.Response, error) {
	return f(ctx, q)
}

// recordingResponses is a ResponsePublisher keeping what it was given.
type recordingResponses struct {
	mu        sync.Mutex
	responses []models.Response
	err       error
}

func (r *recordingResponses) PublishResponse(ctx context.Context, resp models.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recordingResponses) published() []models.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Response(nil), r.responses...)
}

// failingPublisher is a message.Publisher that always fails.
type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (failingPublisher) Close() error                              { return nil }

func encodeQuery(t *testing.T, q models.Query) []byte {
	t.Helper()
	raw, err := codec.NewEncoder(nil).EncodeQuery(q)
	require.NoError(t, err)
	return raw
}

func countryQuery(t *testing.T, id, text string, page, limit uint32) models.CountryQuery {
	t.Helper()
	q, err := models.NewCountryQuery(id, models.MethodSearchCountry, text, page, limit)
	require.NoError(t, err)
	return q
}

func localityQuery(t *testing.T, id, code, text string, page, limit uint32) models.LocalityQuery {
	t.Helper()
	q, err := models.NewLocalityQuery(id, models.MethodSearchLocality, code, text, page, limit)
	require.NoError(t, err)
	return q
}
