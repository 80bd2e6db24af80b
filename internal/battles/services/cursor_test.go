package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBattleCursorRoundTrip(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	id := "2f8f2f9e-1111-4000-8000-000000000001"

	cursor := EncodeBattleCursor(start, id)
	gotTime, gotID, err := DecodeBattleCursor(cursor)
	require.NoError(t, err)
	assert.True(t, gotTime.Equal(start))
	assert.Equal(t, id, gotID)
}

func TestDecodeBattleCursorRejectsGarbage(t *testing.T) {
	for _, cursor := range []string{"not-base64!", "bm9jb2xvbg", ""} {
		_, _, err := DecodeBattleCursor(cursor)
		assert.Error(t, err, "cursor %q", cursor)
	}
}

func TestHistoryCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	cursor := EncodeHistoryCursor(at, 123456789)
	gotTime, gotID, err := DecodeHistoryCursor(cursor)
	require.NoError(t, err)
	assert.True(t, gotTime.Equal(at))
	assert.Equal(t, int64(123456789), gotID)
}
