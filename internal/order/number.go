package order

import (
	"crypto/rand"
	"fmt"
	"time"
)

// maxNumberAttempts bounds the insert-retry loop on order number
// collisions. Collisions are statistically rare; the unique constraint on
// orders.order_number is the actual guarantee.
const maxNumberAttempts = 3

// NewNumber returns a human-readable, globally-unique-enough order number,
// e.g. ORD-20250831130500-8F3A2C. Uniqueness is enforced by the database;
// callers retry with a fresh number on a constraint violation.
func NewNumber(now time.Time) string {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("ORD-%s-%X", now.UTC().Format("20060102150405"), b)
}
