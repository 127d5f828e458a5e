package order

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewNumber(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 8, 31, 13, 5, 0, 0, time.UTC)
	n := NewNumber(at)
	require.Regexp(t, regexp.MustCompile(`^ORD-20250831130500-[0-9A-F]{6}$`), n)

	// timestamp is normalized to UTC regardless of the input zone
	mx := time.FixedZone("CST", -6*3600)
	require.Contains(t, NewNumber(at.In(mx)), "ORD-20250831130500-")
}
