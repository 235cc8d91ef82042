package forecast

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellKey_CoarsensToGrid(t *testing.T) {
	// Nearby points inside one model cell share a key.
	a := CellKey("stormglass", 33.63, -118.01, 0.1)
	b := CellKey("stormglass", 33.64, -117.99, 0.1)
	assert.Equal(t, a, b)
	assert.Equal(t, "stormglass:33.60,-118.00", a)

	// A coarser grid folds more queries together.
	assert.Equal(t,
		CellKey("noaa_gfs", 33.63, -118.0, 0.5),
		CellKey("noaa_gfs", 33.70, -117.80, 0.5),
	)

	// Providers never share entries.
	assert.NotEqual(t,
		CellKey("stormglass", 33.63, -118.0, 0.1),
		CellKey("openmeteo", 33.63, -118.0, 0.1),
	)
}

func TestCellKey_DefaultResolution(t *testing.T) {
	assert.Equal(t,
		CellKey("metno", 33.63, -118.0, 0),
		CellKey("metno", 33.63, -118.0, 0.1),
	)
}

func TestCache_HitThenExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewCache(clock)

	obs := Observation{Provider: "stormglass", Lat: 33.6, Lon: -118}
	c.Put("k", obs, time.Hour)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, obs, got)

	clock.Advance(59 * time.Minute)
	_, ok = c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry at exactly its TTL is expired")
}

func TestCache_PutOverwrites(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewCache(clock)

	c.Put("k", Observation{Provider: "a"}, time.Hour)
	clock.Advance(50 * time.Minute)
	c.Put("k", Observation{Provider: "b"}, time.Hour)

	clock.Advance(30 * time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok, "overwrite resets the entry age")
	assert.Equal(t, "b", got.Provider)
}

func TestCache_Sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewCache(clock)

	c.Put("short", Observation{}, 10*time.Minute)
	c.Put("long", Observation{}, 2*time.Hour)
	require.Equal(t, 2, c.Len())

	clock.Advance(time.Hour)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("long")
	assert.True(t, ok)
}
