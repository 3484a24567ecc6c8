package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination_GetLimit(t *testing.T) {
	for _, tc := range []struct{ in, want int }{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{5, 5},
		{MaxLimit, MaxLimit},
		{MaxLimit + 1, MaxLimit},
	} {
		p := Pagination{Limit: tc.in}
		assert.Equal(t, tc.want, p.GetLimit(), tc.in)
	}
}
