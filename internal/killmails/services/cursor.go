package services

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursors are opaque to clients: base64url of "unixMillis:killmailID", the
// sort key of the page's last row.

// EncodeCursor builds the cursor pointing past the given row.
func EncodeCursor(occurredAt time.Time, killmailID int64) string {
	raw := fmt.Sprintf("%d:%d", occurredAt.UnixMilli(), killmailID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a client-supplied cursor back into the sort key.
func DecodeCursor(cursor string) (time.Time, int64, error) {
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
