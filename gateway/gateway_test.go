package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCarrier(t *testing.T) {
	assert.Equal(t, "verizon", NormalizeCarrier("  Verizon "))
	assert.Equal(t, "t-mobile", NormalizeCarrier("T-Mobile"))
}

func TestSupportedCarrier(t *testing.T) {
	assert.True(t, SupportedCarrier("ATT"))
	assert.True(t, SupportedCarrier("googlefi"))
	assert.False(t, SupportedCarrier("carrier-pigeon"))
}

func TestSMSAddress(t *testing.T) {
	cases := []struct {
		name        string
		phoneNumber string
		carrier     string
		expected    string
	}{
		{
			name:        "plain ten digits",
			phoneNumber: "5551234567",
			carrier:     "verizon",
			expected:    "5551234567@vtext.com",
		},
		{
			name:        "formatted number",
			phoneNumber: "(555) 123-4567",
			carrier:     "att",
			expected:    "5551234567@txt.att.net",
		},
		{
			name:        "leading country code dropped",
			phoneNumber: "+1 555 123 4567",
			carrier:     "T-Mobile",
			expected:    "5551234567@tmomail.net",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			addr, err := SMSAddress(c.phoneNumber, c.carrier)
			require.NoError(t, err)
			assert.Equal(t, c.expected, addr)
		})
	}

	t.Run("unknown carrier", func(t *testing.T) {
		_, err := SMSAddress("5551234567", "nope")
		assert.Error(t, err)
	})

	t.Run("too few digits", func(t *testing.T) {
		_, err := SMSAddress("12345", "verizon")
		assert.Error(t, err)
	})

	t.Run("eleven digits without country code", func(t *testing.T) {
		_, err := SMSAddress("25551234567", "verizon")
		assert.Error(t, err)
	})
}
