package policy

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a deterministic fingerprint of a sanitized policy. Cached
// pools built under a different hash are invalid regardless of TTL.
func Hash(p Policy) string {
	b, err := json.Marshal(p)
	if err != nil {
		// Policy contains only marshalable fields; this cannot happen in
		// practice, but a stable sentinel beats a panic.
		return "0000000000000000"
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}
