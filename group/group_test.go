package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduledTimeMap(t *testing.T) {
	t.Run("missing configuration", func(t *testing.T) {
		g := ServiceGroup{}
		assert.Empty(t, g.ScheduledTimeMap())
	})

	t.Run("malformed configuration", func(t *testing.T) {
		g := ServiceGroup{ScheduledTimes: "{not json"}
		assert.Empty(t, g.ScheduledTimeMap())
	})

	t.Run("open key set", func(t *testing.T) {
		g := ServiceGroup{}
		require.NoError(t, g.SetScheduledTimes(map[string]string{
			"morning": "07:30",
			"checkin": "21:15",
		}))
		times := g.ScheduledTimeMap()
		assert.Equal(t, "07:30", times["morning"])
		assert.Equal(t, "21:15", times["checkin"])
	})
}

func TestClockFor(t *testing.T) {
	g := ServiceGroup{}
	require.NoError(t, g.SetScheduledTimes(map[string]string{
		"morning": "06:45",
		"evening": "",
	}))

	assert.Equal(t, "06:45", g.ClockFor("morning"))
	// unconfigured and empty-valued types fall back to the default
	assert.Equal(t, DefaultClock, g.ClockFor("noon"))
	assert.Equal(t, DefaultClock, g.ClockFor("evening"))
}
