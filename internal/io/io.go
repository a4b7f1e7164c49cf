package io

import (
	"fmt"
	"io"
)

// MaxResponseBytes bounds how much of a service response is ever read into
// memory. Token and discovery responses are tiny; anything larger is treated as
// an error rather than buffered.
const MaxResponseBytes int64 = 1 << 20

// LimitRead reads from the provided io.ReadCloser up to the specified limit and
// closes it. If the content exceeds the limit, an error is returned instead of
// a truncated result.
func LimitRead(r io.ReadCloser, limit int64) ([]byte, error) {
	defer r.Close()

	// Read one byte past the limit so an oversized body can be told apart from
	// one that is exactly the limit.
	bodyBytes, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}
	if int64(len(bodyBytes)) > limit {
		return nil, fmt.Errorf("content exceeds limit of %d bytes", limit)
	}
	return bodyBytes, nil
}
