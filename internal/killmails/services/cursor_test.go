package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 30, 45, 123000000, time.UTC)

	cursor := EncodeCursor(at, 128000001)
	gotTime, gotID, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, gotTime.Equal(at))
	assert.Equal(t, int64(128000001), gotID)
}

func TestCursorMillisecondPrecision(t *testing.T) {
	// Sub-millisecond detail is truncated by the encoding; the decoded key
	// still sorts identically because Mongo stores millisecond times.
	at := time.Date(2026, 8, 1, 12, 0, 0, 123456789, time.UTC)
	gotTime, _, err := DecodeCursor(EncodeCursor(at, 1))
	require.NoError(t, err)
	assert.Equal(t, at.Truncate(time.Millisecond), gotTime)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, cursor := range []string{"%%%", "bm9jb2xvbg", "YWJjOmRlZg"} {
		_, _, err := DecodeCursor(cursor)
		assert.Error(t, err, "cursor %q", cursor)
	}
}
