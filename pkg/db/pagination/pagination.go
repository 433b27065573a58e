package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

var ErrInvalidToken = errors.New("invalid_page_token")

// Pagination is the cursor form used by append-only feeds such as the audit log.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Offset is the skip/limit form used by the bookkeeping collections.
type Offset struct {
	Skip  int
	Limit int
}

// Clamp applies def to a missing limit and caps it at max.
func (o Offset) Clamp(def, max int) Offset {
	if o.Skip < 0 {
		o.Skip = 0
	}
	if o.Limit <= 0 {
		o.Limit = def
	}
	if o.Limit > max {
		o.Limit = max
	}
	return o
}

type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(token string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, ErrInvalidToken
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidToken
	}
	if cursor.ID == "" {
		return nil, ErrInvalidToken
	}
	return &cursor, nil
}

// TrimPage expects up to limit+1 rows. It cuts the lookahead row and points
// the next token at the last row kept.
func TrimPage[T any](rows []*T, limit int, cursorOf func(*T) Cursor) ([]*T, PageInfo) {
	if len(rows) <= limit {
		return rows, PageInfo{}
	}

	rows = rows[:limit]
	token, err := EncodeCursor(cursorOf(rows[len(rows)-1]))
	if err != nil {
		return rows, PageInfo{}
	}
	return rows, PageInfo{NextPageToken: token, HasMore: true}
}
