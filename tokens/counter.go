// Package tokens counts LLM tokens for files, caching results by
// (path, modification time) so render-time totals are cheap.
package tokens

import (
	"fmt"
	"os"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tokenizer table used for counting.
const DefaultEncoding = "cl100k_base"

// Unknown is the sentinel for files that could not be counted. It is
// displayed as a placeholder and never included in sums.
const Unknown = -1

// Encoder tokenizes text. *tiktoken.Tiktoken satisfies it.
type Encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

type cacheKey struct {
	path  string
	mtime int64
}

// Counter counts tokens with an eviction-free cache bounded to the
// process lifetime. It is not safe for concurrent use; the selection
// engine is single-threaded.
type Counter struct {
	enc   Encoder
	cache map[cacheKey]int
}

// NewCounter builds a Counter backed by the named tiktoken encoding.
func NewCounter(encodingName string) (*Counter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding %q: %w", encodingName, err)
	}
	return NewCounterWithEncoder(enc), nil
}

// NewCounterWithEncoder builds a Counter around an existing encoder.
// A nil encoder yields Unknown for every count.
func NewCounterWithEncoder(enc Encoder) *Counter {
	return &Counter{
		enc:   enc,
		cache: make(map[cacheKey]int),
	}
}

// Count tokenizes text, failing closed to Unknown.
func (c *Counter) Count(text string) (n int) {
	if c.enc == nil {
		return Unknown
	}
	defer func() {
		if recover() != nil {
			n = Unknown
		}
	}()
	return len(c.enc.Encode(text, nil, nil))
}

// CountFile returns the token count for the file at path, consulting the
// cache first. The cache key includes the modification time, so edits
// invalidate entries automatically. Unreadable files count as Unknown.
func (c *Counter) CountFile(path string) int {
	info, err := os.Stat(path)
	if err != nil {
		return Unknown
	}
	key := cacheKey{path: path, mtime: info.ModTime().UnixNano()}
	if n, ok := c.cache[key]; ok {
		return n
	}

	data, err := os.ReadFile(path)
	var n int
	if err != nil {
		n = Unknown
	} else {
		n = c.Count(string(data))
	}
	c.cache[key] = n
	return n
}

// Total sums the cached counts for paths, skipping Unknown entries.
func (c *Counter) Total(paths []string) int {
	total := 0
	for _, p := range paths {
		if n := c.CountFile(p); n != Unknown {
			total += n
		}
	}
	return total
}
