// Package metadata describes the headers attached to messages the bridge
// publishes. Headers are informational: routing always goes by payload.
package metadata

import (
	"maps"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Header keys set on published messages. Queries carry query_id and kind,
// responses additionally carry schema.
const (
	KeyQueryID = "query_id"
	KeySchema  = "schema"
	KeyKind    = "kind"
)

// Metadata represents the headers carried alongside a message.
type Metadata map[string]string

// New builds Metadata from alternating key/value pairs. Pairs with an empty
// value are skipped and a trailing odd key is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// Clone returns a shallow copy. The result is never nil.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	maps.Copy(out, m)
	return out
}

func (m Metadata) QueryID() string { return m[KeyQueryID] }

// Schema returns the schema the payload was encoded with. Empty on queries.
func (m Metadata) Schema() string { return m[KeySchema] }

func (m Metadata) Kind() string { return m[KeyKind] }

// IsResponse reports whether the headers describe a bridge response.
func (m Metadata) IsResponse() bool { return m[KeySchema] != "" }

// FromWatermill copies Watermill metadata.
func FromWatermill(md message.Metadata) Metadata {
	out := make(Metadata, len(md))
	maps.Copy(out, md)
	return out
}

// ToWatermill copies m into a fresh Watermill map.
func ToWatermill(m Metadata) message.Metadata {
	out := make(message.Metadata, len(m))
	maps.Copy(out, m)
	return out
}
