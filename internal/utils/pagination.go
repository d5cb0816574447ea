// Package utils holds small helpers shared by the HTTP layer. Nothing in
// here knows about questions, credits, or orders.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, falling back to def when s is
// empty or malformed. Query-string parsing never fails hard: a garbage
// limit just means the default page size.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ClampLimitOffset normalizes a limit/offset pair for list endpoints.
// Limit is forced into [1, max] with def substituted for out-of-range or
// unparsed values; offset is floored at zero.
func ClampLimitOffset(limit, offset, def, max int) (int, int) {
	if limit < 1 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
