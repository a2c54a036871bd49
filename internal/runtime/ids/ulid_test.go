package ids

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateULIDIsMonotonic(t *testing.T) {
	prev := CreateULID()
	_, err := ulid.ParseStrict(prev)
	require.NoError(t, err)

	for range 64 {
		next := CreateULID()
		require.Len(t, next, ulid.EncodedSize)
		require.Less(t, prev, next)
		prev = next
	}
}

func TestCreateQueryIDUniqueAcrossGoroutines(t *testing.T) {
	const workers, each = 8, 25

	results := make(chan string, workers*each)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				results <- CreateQueryID()
			}
		}()
	}
	wg.Wait()
	close(results)

	unique := make(map[string]struct{}, workers*each)
	for id := range results {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, workers*each)
}

func TestCreateQueryIDIsLowerCaseULID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := CreateQueryID()

	require.Len(t, id, 26)
	assert.Equal(t, strings.ToLower(id), id)

	ts, ok := Timestamp(id)
	require.True(t, ok)
	assert.True(t, ts.After(before), "timestamp %v should follow %v", ts, before)
}

func TestTimestampRejectsForeignIDs(t *testing.T) {
	_, ok := Timestamp("q1")
	assert.False(t, ok)

	_, ok = Timestamp("")
	assert.False(t, ok)
}
