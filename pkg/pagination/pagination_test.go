package pagination

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}

	encoded := EncodeCursor(original)
	require.NotContains(t, encoded, "=")

	parsed, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, parsed)
	require.True(t, parsed.CreatedAt.Equal(original.CreatedAt))
	require.Equal(t, original.ID, parsed.ID)
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	cursor, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, cursor)

	for _, raw := range []string{
		"not base64!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("abc." + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte("123.not-a-uuid")),
	} {
		_, err := ParseCursor(raw)
		require.True(t, errors.Is(err, ErrInvalidCursor), raw)
	}
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, DefaultLimit, NormalizeLimit(-4))
	require.Equal(t, MaxLimit, NormalizeLimit(1000))
	require.Equal(t, 7, NormalizeLimit(7))
}

func TestPageParams(t *testing.T) {
	params := PageParams{Page: ParsePage("3")}.Normalize(CatalogPageSize)
	require.Equal(t, 3, params.Page)
	require.Equal(t, 12, params.Size)
	require.Equal(t, 24, params.Offset())

	require.Equal(t, 1, ParsePage("-2"))
	require.Equal(t, 1, ParsePage("abc"))
}

func TestNewPage(t *testing.T) {
	params := PageParams{Page: 1, Size: 12}
	page := NewPage([]int{1, 2, 3}, params, 25)
	require.Equal(t, 3, page.TotalPages)
	require.True(t, page.HasNext)

	last := NewPage[int](nil, PageParams{Page: 3, Size: 12}, 25)
	require.False(t, last.HasNext)
	require.NotNil(t, last.Items)
}
