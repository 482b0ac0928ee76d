package toolkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginateSlice_Defaults(t *testing.T) {
	start, end, pg := paginateSlice(10, 0, 0, "more")
	assert.Equal(t, 0, start)
	assert.Equal(t, 10, end)
	assert.Equal(t, defaultPage, pg.Page)
	assert.Equal(t, defaultPageSize, pg.PageSize)
	assert.False(t, pg.Truncated)
	assert.Nil(t, pg.NextPage)
}

func TestPaginateSlice_TruncatesAndAdvances(t *testing.T) {
	start, end, pg := paginateSlice(100, 1, 10, "more")
	assert.Equal(t, 0, start)
	assert.Equal(t, 10, end)
	assert.True(t, pg.Truncated)
	require.NotNil(t, pg.NextPage)
	assert.Equal(t, 2, *pg.NextPage)
	assert.Equal(t, "more", pg.Note)
}

func TestPaginateSlice_PastEndClampsEmpty(t *testing.T) {
	start, end, pg := paginateSlice(5, 10, 10, "more")
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
	assert.False(t, pg.Truncated)
}

// TestPaginateLines_NoLossNoOverlap verifies spec.md §8's testable property:
// paginate_text partitions the lines of t with no loss — every page's lines
// concatenate back to the original set with nothing dropped or duplicated.
func TestPaginateLines_NoLossNoOverlap(t *testing.T) {
	text := "a\nb\nc\nd\ne\nf\ng"
	var collected []string
	page := 1
	for {
		lines, pg := PaginateLines(text, page, 3)
		collected = append(collected, lines...)
		if !pg.Truncated {
			break
		}
		page = *pg.NextPage
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, collected)
}
