package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

const (
	// DefaultLimit applies when a query does not ask for a page size.
	DefaultLimit = 50
	// MaxLimit bounds how many items one page may return.
	MaxLimit = 500
)

// Cursor represents a decoded pagination cursor
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
)

// ClampLimit normalizes a requested page size into [1, MaxLimit],
// substituting DefaultLimit for zero or negative requests.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor creates a base64-encoded cursor from the last item ID and timestamp
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + timestamp.UTC().Format(time.RFC3339Nano)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor decodes a base64-encoded cursor and returns the last ID and timestamp
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{
		LastID:    parts[0],
		Timestamp: timestamp,
	}, nil
}

// SkipPast drops items up to and including the cursor position. Items must
// already be in the query's sort order. When the cursor ID is not present
// (the item aged out of retention) the slice is returned unchanged so the
// caller resumes from the top rather than failing.
func SkipPast[T any](items []T, cursor *Cursor, getID func(T) string) []T {
	if cursor == nil {
		return items
	}
	for i, item := range items {
		if getID(item) == cursor.LastID {
			return items[i+1:]
		}
	}
	return items
}

// NewPage builds a PageResult from the full filtered item list, slicing off
// one page and encoding the next cursor when more items remain.
func NewPage[T any](items []T, limit int, getID func(T) string, getTimestamp func(T) time.Time) *PageResult[T] {
	limit = ClampLimit(limit)
	page := &PageResult[T]{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true
		last := page.Items[limit-1]
		page.Cursor = EncodeCursor(getID(last), getTimestamp(last))
	}
	return page
}

// CreateNextCursor creates a cursor for the next page based on the last item
// Returns empty string if there are no more items
func CreateNextCursor[T any](items []T, limit int, getID func(T) string, getTimestamp func(T) time.Time) string {
	if len(items) == 0 || len(items) < limit {
		return ""
	}
	lastItem := items[len(items)-1]
	return EncodeCursor(getID(lastItem), getTimestamp(lastItem))
}
