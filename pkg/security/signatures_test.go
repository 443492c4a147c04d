package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStamp(t *testing.T) {
	at := time.Date(2025, 3, 15, 11, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	assert.Equal(t, "Ivan Petrov 2025-03-15T08:00:00Z", Stamp(" Ivan ", "Petrov", at))
}

func TestParseStamp(t *testing.T) {
	info, err := ParseStamp("Ivan Petrov 2025-03-15T08:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "Ivan Petrov", info.SignerName)
	assert.Equal(t, time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC), info.SigningTime.UTC())

	// browser-made stamps carry milliseconds
	info, err = ParseStamp("Anna Smirnova 2025-03-15T08:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, "Anna Smirnova", info.SignerName)

	for _, bad := range []string{"", "Ivan", "Ivan Petrov yesterday"} {
		_, err := ParseStamp(bad)
		assert.ErrorIs(t, err, ErrMalformedStamp, bad)
	}
}
