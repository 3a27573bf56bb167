package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePagination(t *testing.T) {
	tests := []struct {
		name        string
		page        int
		perPage     int
		wantPage    int
		wantPerPage int
	}{
		{"zero values fall back to defaults", 0, 0, 1, 20},
		{"negative page clamps to first", -3, 10, 1, 10},
		{"per page above cap falls back", 2, 500, 2, 20},
		{"valid values pass through", 3, 100, 3, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, perPage := normalizePagination(tt.page, tt.perPage)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPerPage, perPage)
		})
	}
}

func TestPaginationMeta(t *testing.T) {
	meta := paginationMeta(2, 20, 41)
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, 20, meta.PerPage)
	assert.Equal(t, int64(41), meta.Total)
	assert.Equal(t, 3, meta.TotalPages, "a partial page still counts")

	meta = paginationMeta(1, 20, 40)
	assert.Equal(t, 2, meta.TotalPages)

	meta = paginationMeta(1, 20, 0)
	assert.Equal(t, 0, meta.TotalPages)
}
