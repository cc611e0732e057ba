package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		page, size int
		wantOffset int
		wantLimit  int
	}{
		{name: "defaults", page: 0, size: 0, wantOffset: 0, wantLimit: 20},
		{name: "second page", page: 2, size: 10, wantOffset: 10, wantLimit: 10},
		{name: "negative page", page: -3, size: 5, wantOffset: 0, wantLimit: 5},
		{name: "capped", page: 3, size: 500, wantOffset: 200, wantLimit: 100},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			off, lim := Calculate(tt.page, tt.size)
			assert.Equal(t, tt.wantOffset, off)
			assert.Equal(t, tt.wantLimit, lim)
			assert.Equal(t, max(tt.page, 1), Page(off, lim))
		})
	}
}

func TestParseIntDefault(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
	assert.Equal(t, -2, ParseIntDefault("-2", 7))
}
