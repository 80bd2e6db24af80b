package services

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Battle cursors are opaque to clients: base64url of "unixMillis:battleID",
// the sort key of the page's last row.

// EncodeBattleCursor builds the cursor pointing past the given battle.
func EncodeBattleCursor(startTime time.Time, battleID string) string {
	raw := fmt.Sprintf("%d:%s", startTime.UnixMilli(), battleID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeBattleCursor parses a client-supplied cursor back into the sort key.
func DecodeBattleCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed cursor: %w", err)
	}

	millisStr, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("malformed cursor")
	}
	millis, err := strconv.ParseInt(millisStr, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed cursor timestamp: %w", err)
	}
	return time.UnixMilli(millis).UTC(), id, nil
}

// EncodeHistoryCursor builds the ship-history cursor pointing past the
// given row.
func EncodeHistoryCursor(occurredAt time.Time, killmailID int64) string {
	raw := fmt.Sprintf("%d:%d", occurredAt.UnixMilli(), killmailID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeHistoryCursor parses a ship-history cursor back into the sort key.
func DecodeHistoryCursor(cursor string) (time.Time, int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed cursor: %w", err)
	}

	millisStr, idStr, ok := strings.Cut(string(raw), ":")
	if !ok {
		return time.Time{}, 0, fmt.Errorf("malformed cursor")
	}
	millis, err := strconv.ParseInt(millisStr, 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed cursor timestamp: %w", err)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed cursor id: %w", err)
	}
	return time.UnixMilli(millis).UTC(), id, nil
}
