package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginatedTotalPages(t *testing.T) {
	r := Paginated(200, []int{1, 2}, 41, 2, 20)
	page, ok := r.Data.(Page)
	assert.True(t, ok)
	assert.Equal(t, "success", r.Status)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(41), page.Total)

	empty := Paginated(200, nil, 0, 1, 20).Data.(Page)
	assert.Zero(t, empty.TotalPages)
}

func TestError(t *testing.T) {
	r := Error(404, "not found")
	assert.Equal(t, "error", r.Status)
	assert.Equal(t, 404, r.StatusCode)
	assert.Equal(t, "not found", r.Error)
	assert.Nil(t, r.Data)
}
