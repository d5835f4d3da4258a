package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Attributes is the raw device attribute map reported by the client at
// attempt start (user agent, screen metrics, GPU strings, core count, ...).
// Values are telemetry, not proof: the hash binds the attempt to whatever
// the client claimed, and drift detection catches later inconsistencies.
type Attributes map[string]string

// Hash canonicalizes the attribute map (sorted keys, key=value records
// joined with a separator that cannot appear ambiguously) and returns the
// hex-encoded SHA-256 digest. Deterministic across map iteration order.
func Hash(attrs Attributes) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		// Length-prefix each record so "ab"+"c" and "a"+"bc" differ.
		fmt.Fprintf(h, "%d:%s=%d:%s;", len(k), k, len(attrs[k]), attrs[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Matches reports whether the attributes hash to the given bound hash.
func Matches(attrs Attributes, boundHash string) bool {
	return Hash(attrs) == boundHash
}
