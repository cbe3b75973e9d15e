package drift

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Fingerprint computes the deterministic identity of a potential signal.
// Identical inputs over identical windows always yield the same value, which
// is what makes batch recomputation idempotent: the signals table carries a
// unique constraint on this value and a re-run collides instead of duplicating.
func Fingerprint(tenant, entity string, module Module, metric MetricKind, windowStart, windowEnd time.Time) string {
	parts := []string{
		tenant,
		entity,
		string(module),
		string(metric),
		windowStart.UTC().Format("2006-01-02"),
		windowEnd.UTC().Format("2006-01-02"),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
