// Package codec turns raw topic payloads into typed queries and typed
// responses back into payloads. The wire format does not describe its own
// type, so decoding is an ordered trial across the query schemas.
package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	loggingpkg "github.com/drblury/geobridge/internal/runtime/logging"
	"github.com/drblury/geobridge/internal/runtime/models"
	"github.com/drblury/geobridge/internal/runtime/schema"
)

// ErrEmptyPayload is carried by the NoMatch result of an empty message.
var ErrEmptyPayload = errors.New("codec: empty payload")

// Outcome classifies a decode attempt.
type Outcome int

const (
	// OutcomeNoMatch means no query schema accepted the bytes. This is the
	// steady state for responses and foreign traffic on the shared topic.
	OutcomeNoMatch Outcome = iota
	OutcomeMatched
	OutcomeMissingFields
	OutcomeUnknownMethod
	// OutcomeInconsistentMethod is a locality-shaped decode that declares
	// search_country.
	OutcomeInconsistentMethod
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeMatched:
		return "matched"
	case OutcomeMissingFields:
		return "missing_fields"
	case OutcomeUnknownMethod:
		return "unknown_method"
	case OutcomeInconsistentMethod:
		return "inconsistent_method"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the variant produced by Decode. Query is set only when Outcome is
// OutcomeMatched.
type Result struct {
	Query   models.Query
	Outcome Outcome
	// Schema is the schema the verdict was reached under.
	Schema schema.Name
	Method string
	Err    error
}

// Decoder performs the ordered-trial decode. It holds no per-message state.
type Decoder struct {
	registry *schema.Registry
	logger   loggingpkg.ServiceLogger
	opts     proto.UnmarshalOptions
}

// NewDecoder returns a Decoder over reg.
func NewDecoder(reg *schema.Registry, logger loggingpkg.ServiceLogger) *Decoder {
	if reg == nil {
		reg = schema.Default()
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &Decoder{
		registry: reg,
		logger:   logger,
		opts:     proto.UnmarshalOptions{DiscardUnknown: true},
	}
}

// Decode tries CountrySearchQuery first and LocalitySearchQuery second.
//
// A country-shaped decode that declares search_locality is treated as a false
// positive and falls through to the locality trial; any other non-empty
// method under the country schema is authoritative and ends the trial. Adding
// a third query schema means extending these rules by hand.
func (d *Decoder) Decode(raw []byte) Result {
	if len(raw) == 0 {
		return Result{Outcome: OutcomeNoMatch, Err: ErrEmptyPayload}
	}

	if res, done := d.tryCountry(raw); done {
		return res
	}
	return d.tryLocality(raw)
}

func (d *Decoder) tryCountry(raw []byte) (Result, bool) {
	msg, err := d.structural(schema.CountrySearchQuery, raw)
	if err != nil {
		d.logger.Trace("Payload is not a CountrySearchQuery", loggingpkg.LogFields{"error": err.Error()})
		return Result{}, false
	}
	if err := d.registry.CheckRequired(msg); err != nil {
		d.logger.Trace("CountrySearchQuery candidate rejected", loggingpkg.LogFields{"error": err.Error()})
		return Result{}, false
	}

	method := getString(msg, schema.FieldQueryMethod)
	switch models.Method(method) {
	case models.MethodSearchCountry:
		q, err := models.NewCountryQuery(
			getString(msg, schema.FieldQueryID),
			models.Method(method),
			getString(msg, schema.FieldQuery),
			getUint32(msg, schema.FieldPage),
			getUint32(msg, schema.FieldLimit),
		)
		if err != nil {
			return Result{Outcome: OutcomeMissingFields, Schema: schema.CountrySearchQuery, Method: method, Err: err}, true
		}
		return Result{Query: q, Outcome: OutcomeMatched, Schema: schema.CountrySearchQuery, Method: method}, true
	case models.MethodSearchLocality:
		d.logger.Trace("CountrySearchQuery candidate declares search_locality, trying LocalitySearchQuery", nil)
		return Result{}, false
	default:
		return Result{Outcome: OutcomeUnknownMethod, Schema: schema.CountrySearchQuery, Method: method}, true
	}
}

func (d *Decoder) tryLocality(raw []byte) Result {
	msg, err := d.structural(schema.LocalitySearchQuery, raw)
	if err != nil {
		return Result{Outcome: OutcomeNoMatch, Schema: schema.LocalitySearchQuery, Err: err}
	}
	if err := d.registry.CheckRequired(msg); err != nil {
		return Result{Outcome: OutcomeMissingFields, Schema: schema.LocalitySearchQuery, Err: err}
	}

	method := getString(msg, schema.FieldQueryMethod)
	switch models.Method(method) {
	case models.MethodSearchLocality:
		q, err := models.NewLocalityQuery(
			getString(msg, schema.FieldQueryID),
			models.Method(method),
			getString(msg, schema.FieldCountryCode),
			getString(msg, schema.FieldQuery),
			getUint32(msg, schema.FieldPage),
			getUint32(msg, schema.FieldLimit),
		)
		if err != nil {
			return Result{Outcome: OutcomeMissingFields, Schema: schema.LocalitySearchQuery, Method: method, Err: err}
		}
		return Result{Query: q, Outcome: OutcomeMatched, Schema: schema.LocalitySearchQuery, Method: method}
	case models.MethodSearchCountry:
		return Result{Outcome: OutcomeInconsistentMethod, Schema: schema.LocalitySearchQuery, Method: method}
	default:
		return Result{Outcome: OutcomeUnknownMethod, Schema: schema.LocalitySearchQuery, Method: method}
	}
}

// structural parses raw against one schema without judging whether that
// schema is the true origin of the bytes.
func (d *Decoder) structural(name schema.Name, raw []byte) (protoreflect.Message, error) {
	msg, err := d.registry.NewMessage(name)
	if err != nil {
		return nil, err
	}
	if err := d.opts.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return msg, nil
}

func fieldOf(msg protoreflect.Message, name string) protoreflect.FieldDescriptor {
	fd := msg.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic(fmt.Sprintf("codec: %s has no field %q", msg.Descriptor().FullName(), name))
	}
	return fd
}

func getString(msg protoreflect.Message, name string) string {
	return msg.Get(fieldOf(msg, name)).String()
}

func getUint32(msg protoreflect.Message, name string) uint32 {
	return uint32(msg.Get(fieldOf(msg, name)).Uint())
}

func getUint64(msg protoreflect.Message, name string) uint64 {
	return msg.Get(fieldOf(msg, name)).Uint()
}
