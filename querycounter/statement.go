package querycounter

import (
	"crypto/sha256"
	"encoding/hex"
)

// NormalizedKey identifies a statement shape independent of its literal and bind-parameter values.
type NormalizedKey string

// UnknownKey groups statements whose normalization or stack capture failed.
const UnknownKey NormalizedKey = "<unknown>"

func (k NormalizedKey) String() string {
	return string(k)
}

// Hash returns a short, stable fingerprint of the key, suitable for log and metric attributes
// where the full statement text would be too long or too high in cardinality.
func (k NormalizedKey) Hash() string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

// TrackedStatement is a single observed statement execution.
// Event sources fill RawText and Args, the QueryCounter derives NormalizedKey and Stack.
type TrackedStatement struct {
	RawText       string
	Args          []any
	NormalizedKey NormalizedKey
	Stack         Stack
}
