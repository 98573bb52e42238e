package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const cursorSeparator = ","

// Cursor is the position of an article in publish-time-descending order.
type Cursor struct {
	PublishTime int64
	ID          string
}

// EncodeCursor creates an opaque cursor string from publish time and ID.
func EncodeCursor(publishTime int64, id string) string {
	key := fmt.Sprintf("%d%s%s", publishTime, cursorSeparator, id)
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor parses the opaque cursor string back into publish time and ID.
func DecodeCursor(encodedCursor string) (*Cursor, error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(encodedCursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decodedBytes), cursorSeparator, 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid publish time in cursor: %w", err)
	}

	return &Cursor{PublishTime: ts, ID: parts[1]}, nil
}
