package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManual(t *testing.T) {
	start := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	c := NewManual(start)
	require.Equal(t, start, c.Now())

	c.Advance(599 * time.Second)
	require.Equal(t, start.Add(599*time.Second), c.Now())

	c.Set(start)
	require.Equal(t, start, c.Now())
}

func TestFixed_IsUTC(t *testing.T) {
	loc := time.FixedZone("x", 3600)
	c := NewFixed(time.Date(2025, 1, 1, 1, 0, 0, 0, loc))
	require.Equal(t, time.UTC, c.Now().Location())
	require.Equal(t, 0, c.Now().Hour())
}
