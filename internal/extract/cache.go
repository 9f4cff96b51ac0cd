package extract

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of extraction results to keep.
const DefaultCacheSize = 1024

// Cache memoizes extraction results by blob id. Identical content stored
// under several paths, or seen again on a later run, is parsed once.
// Safe for concurrent use.
type Cache struct {
	results *lru.Cache[string, Result]
}

// NewCache creates a cache holding up to size results.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	results, _ := lru.New[string, Result](size)
	return &Cache{results: results}
}

// Get returns the memoized result for blob.
func (c *Cache) Get(blob string) (Result, bool) {
	return c.results.Get(blob)
}

// Extract returns the memoized result for blob, or loads the blob content,
// extracts it and remembers the result. A load error is returned as is and
// nothing is cached.
func (c *Cache) Extract(blob string, load func() ([]byte, error)) (Result, error) {
	if res, ok := c.results.Get(blob); ok {
		return res, nil
	}
	data, err := load()
	if err != nil {
		return Result{}, err
	}
	res := Extract(data)
	c.results.Add(blob, res)
	return res, nil
}

// Len returns the number of memoized results.
func (c *Cache) Len() int {
	return c.results.Len()
}
