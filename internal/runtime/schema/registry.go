// Package schema holds the immutable field layouts of every message that
// travels on the bridge topic. Layouts are declared as plain Go tables and
// compiled into protobuf descriptors once at startup, so the same registry
// drives both structural decoding and response encoding.
package schema

import (
	"errors"
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const fileName = "geobridge/schemas.proto"

var (
	// ErrUnknownSchema is returned when a schema name is not registered.
	ErrUnknownSchema = errors.New("schema: unknown schema")
	// ErrMissingField reports an empty required field.
	ErrMissingField = errors.New("schema: required field missing")
)

// MissingFieldError names the required field that was empty.
type MissingFieldError struct {
	Schema Name
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("schema: %s.%s is required", e.Schema, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// Registry exposes compiled schemas by name. It is read-only after New returns
// and safe for concurrent use.
type Registry struct {
	files    *protoregistry.Files
	messages map[Name]protoreflect.MessageDescriptor
	required map[Name][]protoreflect.FieldDescriptor
	names    []Name
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return MustNew(Definitions)
})

// Default returns the process-wide registry built from Definitions.
func Default() *Registry {
	return defaultRegistry()
}

// MustNew is like New but panics on a malformed definition table.
func MustNew(defs []Definition) *Registry {
	reg, err := New(defs)
	if err != nil {
		panic(err)
	}
	return reg
}

// New compiles the definitions into a private descriptor registry.
func New(defs []Definition) (*Registry, error) {
	fdp, err := buildFile(defs)
	if err != nil {
		return nil, err
	}

	fd, err := protodesc.NewFile(fdp, new(protoregistry.Files))
	if err != nil {
		return nil, fmt.Errorf("schema: compile descriptors: %w", err)
	}

	files := new(protoregistry.Files)
	if err := files.RegisterFile(fd); err != nil {
		return nil, fmt.Errorf("schema: register descriptors: %w", err)
	}

	reg := &Registry{
		files:    files,
		messages: make(map[Name]protoreflect.MessageDescriptor, len(defs)),
		required: make(map[Name][]protoreflect.FieldDescriptor, len(defs)),
		names:    make([]Name, 0, len(defs)),
	}

	for _, def := range defs {
		md := fd.Messages().ByName(protoreflect.Name(def.Name))
		if md == nil {
			return nil, fmt.Errorf("schema: %s missing after compile", def.Name)
		}
		reg.messages[def.Name] = md
		reg.names = append(reg.names, def.Name)
		for _, f := range def.Fields {
			if f.Required {
				reg.required[def.Name] = append(reg.required[def.Name], md.Fields().ByNumber(protoreflect.FieldNumber(f.Number)))
			}
		}
	}

	return reg, nil
}

func buildFile(defs []Definition) (*descriptorpb.FileDescriptorProto, error) {
	if len(defs) == 0 {
		return nil, errors.New("schema: no definitions")
	}

	// Edition 2023 with implicit presence encodes exactly like proto3. String
	// fields are not UTF-8 validated so that peers sending raw bytes in a text
	// field still decode.
	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(fileName),
		Package: proto.String(Package),
		Syntax:  proto.String("editions"),
		Edition: descriptorpb.Edition_EDITION_2023.Enum(),
		Options: &descriptorpb.FileOptions{
			Features: &descriptorpb.FeatureSet{
				FieldPresence:  descriptorpb.FeatureSet_IMPLICIT.Enum(),
				Utf8Validation: descriptorpb.FeatureSet_NONE.Enum(),
			},
		},
	}

	seen := make(map[Name]struct{}, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return nil, errors.New("schema: definition without a name")
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("schema: %s defined twice", def.Name)
		}
		seen[def.Name] = struct{}{}

		msg := &descriptorpb.DescriptorProto{Name: proto.String(string(def.Name))}
		for _, f := range def.Fields {
			field, err := buildField(def.Name, f)
			if err != nil {
				return nil, err
			}
			msg.Field = append(msg.Field, field)
		}
		file.MessageType = append(file.MessageType, msg)
	}

	return file, nil
}

func buildField(owner Name, f Field) (*descriptorpb.FieldDescriptorProto, error) {
	typ, ok := f.Kind.descriptorType()
	if !ok {
		return nil, fmt.Errorf("schema: %s.%s has unknown kind %d", owner, f.Name, f.Kind)
	}
	if f.Required && (f.Repeated || f.Kind == KindMessage) {
		return nil, fmt.Errorf("schema: %s.%s: only singular scalars can be required", owner, f.Name)
	}

	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	if f.Repeated {
		label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	}

	field := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(f.Name),
		Number: proto.Int32(f.Number),
		Label:  label.Enum(),
		Type:   typ.Enum(),
	}
	if f.Kind == KindMessage {
		if f.Message == "" {
			return nil, fmt.Errorf("schema: %s.%s needs a message type", owner, f.Name)
		}
		field.TypeName = proto.String("." + Package + "." + string(f.Message))
	}
	return field, nil
}

// Names returns the registered schema names in declaration order.
func (r *Registry) Names() []Name {
	out := make([]Name, len(r.names))
	copy(out, r.names)
	return out
}

// Descriptor returns the compiled descriptor for name.
func (r *Registry) Descriptor(name Name) (protoreflect.MessageDescriptor, error) {
	md, ok := r.messages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return md, nil
}

// NewMessage returns an empty dynamic message for name.
func (r *Registry) NewMessage(name Name) (*dynamicpb.Message, error) {
	md, err := r.Descriptor(name)
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(md), nil
}

// Required lists the names of the required fields of a schema.
func (r *Registry) Required(name Name) []string {
	fields := r.required[name]
	out := make([]string, 0, len(fields))
	for _, fd := range fields {
		out = append(out, string(fd.Name()))
	}
	return out
}

// CheckRequired returns a *MissingFieldError for the first required field of
// msg that is unset or empty. With implicit presence an empty string is
// indistinguishable from an absent one, which is exactly the invariant the
// bridge enforces.
func (r *Registry) CheckRequired(msg protoreflect.Message) error {
	name := Name(msg.Descriptor().Name())
	if _, ok := r.messages[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	for _, fd := range r.required[name] {
		if !msg.Has(fd) {
			return &MissingFieldError{Schema: name, Field: string(fd.Name())}
		}
	}
	return nil
}
