package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalToUTC(t *testing.T) {
	local := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

	// UTC+5:30: 08:00 local is 02:30 UTC
	utc := LocalToUTC(local, 330)
	assert.Equal(t, time.Date(2024, 3, 15, 2, 30, 0, 0, time.UTC), utc)

	// UTC-7: 08:00 local is 15:00 UTC
	utc = LocalToUTC(local, -420)
	assert.Equal(t, time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC), utc)
}

func TestRoundTrip(t *testing.T) {
	// include the quarter-hour and +13/+14 edge offsets
	offsets := []int{-720, -420, -90, 0, 60, 330, 345, 525, 765, 780, 840}
	original := time.Date(2024, 11, 2, 23, 45, 0, 0, time.UTC)

	for _, offset := range offsets {
		utc := LocalToUTC(original, offset)
		back := UTCToLocal(utc, offset)
		assert.True(t, original.Equal(back), "offset %d did not round-trip", offset)
	}
}

func TestFormatOffset(t *testing.T) {
	assert.Equal(t, "UTC+00:00", FormatOffset(0))
	assert.Equal(t, "UTC+05:30", FormatOffset(330))
	assert.Equal(t, "UTC+05:45", FormatOffset(345))
	assert.Equal(t, "UTC-07:00", FormatOffset(-420))
	assert.Equal(t, "UTC+14:00", FormatOffset(840))
	assert.Equal(t, "UTC-12:00", FormatOffset(-720))
}

func TestFormatOffsetWithLabel(t *testing.T) {
	assert.Equal(t, "UTC+00:00", FormatOffsetWithLabel(0, ""))
	assert.Equal(t, "UTC+00:00", FormatOffsetWithLabel(0, "UTC"))
	assert.Equal(t, "IST (UTC+05:30)", FormatOffsetWithLabel(330, "IST"))
}

func TestParseClock(t *testing.T) {
	hour, minute, err := ParseClock("08:00")
	require.NoError(t, err)
	assert.Equal(t, 8, hour)
	assert.Equal(t, 0, minute)

	hour, minute, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23, hour)
	assert.Equal(t, 59, minute)

	for _, invalid := range []string{"", "8", "24:00", "12:60", "ab:cd", "12:00:00"} {
		_, _, err := ParseClock(invalid)
		assert.Error(t, err, "expected %q to be rejected", invalid)
	}
}

func TestCombineDateClock(t *testing.T) {
	date := time.Date(2024, 3, 15, 22, 11, 5, 0, time.UTC)
	combined := CombineDateClock(date, 8, 30)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC), combined)
}
