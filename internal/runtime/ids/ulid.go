// Package ids generates the identifiers stamped on published messages and
// client queries.
package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
// Published responses use it as their message UUID.
func CreateULID() string {
	return next().String()
}

// CreateQueryID returns a correlation token for an outgoing query. It is a
// lower-cased ULID so peers that compare ids case-sensitively still match.
func CreateQueryID() string {
	return strings.ToLower(next().String())
}

// Timestamp extracts the creation time from an id produced by this package.
func Timestamp(id string) (time.Time, bool) {
	parsed, err := ulid.ParseStrict(strings.ToUpper(id))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}

func next() ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}
