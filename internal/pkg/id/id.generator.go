package id

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a prefixed ULID, e.g. "evt_01J8...". ULIDs sort by
// creation time, which keeps event streams readable.
func GenerateUUID(prefix string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	return prefix + "_" + id.String()
}
