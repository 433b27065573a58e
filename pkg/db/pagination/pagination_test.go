package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetClamp(t *testing.T) {
	assert.Equal(t, Offset{Skip: 0, Limit: 100}, Offset{Skip: -3}.Clamp(100, 500))
	assert.Equal(t, Offset{Skip: 10, Limit: 500}, Offset{Skip: 10, Limit: 9000}.Clamp(100, 500))
	assert.Equal(t, Offset{Skip: 2, Limit: 25}, Offset{Skip: 2, Limit: 25}.Clamp(100, 500))
}

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2024-03-15T09:00:00Z"})
	require.NoError(t, err)

	got, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, "2024-03-15T09:00:00Z", got.CreatedAt)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not base64!")
	assert.ErrorIs(t, err, ErrInvalidToken)

	empty, err := EncodeCursor(Cursor{CreatedAt: "2024-03-15T09:00:00Z"})
	require.NoError(t, err)
	_, err = DecodeCursor(empty)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTrimPage(t *testing.T) {
	type row struct{ id string }
	cursorOf := func(r *row) Cursor { return Cursor{ID: r.id} }
	rows := []*row{{"3"}, {"2"}, {"1"}}

	page, info := TrimPage(rows, 2, cursorOf)
	require.Len(t, page, 2)
	assert.True(t, info.HasMore)
	next, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "2", next.ID)

	page, info = TrimPage(rows, 5, cursorOf)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
