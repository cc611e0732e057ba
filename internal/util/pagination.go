package util

import "strconv"

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Calculate turns a 1-based page and a page size into an offset and a
// clamped limit.
func Calculate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	limit = ClampLimit(size)
	return (page - 1) * limit, limit
}

// ClampLimit defaults a non-positive limit and caps it at MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Page converts an offset back into the 1-based page it starts.
func Page(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
