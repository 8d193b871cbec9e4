package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "1764"})
	require.NoError(t, err)
	assert.NotContains(t, token, "=", "tokens are used in query strings")

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "1764", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestBuildCursorPage(t *testing.T) {
	idOf := func(v string) Cursor { return Cursor{ID: v} }

	page, info, err := BuildCursorPage([]string{"9", "8", "7"}, 2, idOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"9", "8"}, page)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "8", cursor.ID)

	page, info, err = BuildCursorPage([]string{"9"}, 2, idOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, page)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
