// Package resultcache short-circuits the whole optimization pipeline for
// a request whose fingerprint was already seen: messages, tools, RAG
// context, tool outputs, model, and the resolved config are each hashed
// individually, then composed into one cache key, matching the reference
// implementation's layered fingerprinting strategy.
package resultcache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const keyPrefix = "opt:cache:"

// Fingerprint fields, one hash each before composition.
type Fingerprint struct {
	Messages    any
	Tools       any
	RAGContext  any
	ToolOutputs any
	Model       string
	Config      any
}

func hashField(v any) uint64 {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", v))
	}
	return xxhash.Sum64(raw)
}

// Key composes a cache key from a request fingerprint: each field is
// hashed independently first, then the concatenation of those hashes is
// hashed again, so a change in any single field changes the key.
func Key(fp Fingerprint) string {
	parts := []uint64{
		hashField(fp.Messages),
		hashField(fp.Tools),
		hashField(fp.RAGContext),
		hashField(fp.ToolOutputs),
		hashField(fp.Model),
		hashField(fp.Config),
	}
	buf := make([]byte, 0, len(parts)*8)
	for _, p := range parts {
		buf = fmt.Appendf(buf, "%016x", p)
	}
	composite := xxhash.Sum64(buf)
	return fmt.Sprintf("%s%016x", keyPrefix, composite)
}

// BlockInfo is the cache's copy of a block's selection disposition, mirrored
// from pipeline.BlockInfo so this package doesn't need to import pipeline.
type BlockInfo struct {
	ID     string
	Type   string
	Tokens int
	Reason string
}

// Entry is a cached optimization result. Spec §3 defines the cache value as
// "the full optimization result (optimized messages, selection info, stats,
// trace id)" — every field a cache hit needs to reconstruct an equivalent
// Result lives here, not just the messages and token counts.
type Entry struct {
	Messages       []map[string]string
	TokensBefore   int
	TokensAfter    int
	Route          string
	FallbackUsed   bool
	SelectedBlocks []BlockInfo
	DroppedBlocks  []BlockInfo
}

// Cache is a TTL-bounded in-process result cache, the embedded-process
// analogue of the reference implementation's Redis-backed cache.
type Cache struct {
	lru *lru.LRU[string, Entry]
}

// New constructs a Cache holding up to size entries, each expiring ttl
// after insertion. ttl defaults to 600s (the reference default) if <= 0.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 10000
	}
	if ttl <= 0 {
		ttl = 600 * time.Second
	}
	return &Cache{lru: lru.NewLRU[string, Entry](size, nil, ttl)}
}

// Get returns the cached entry for key, if present and unexpired.
func (c *Cache) Get(key string) (Entry, bool) {
	return c.lru.Get(key)
}

// Set stores entry under key.
func (c *Cache) Set(key string, entry Entry) {
	c.lru.Add(key, entry)
}

// Invalidate removes key from the cache.
func (c *Cache) Invalidate(key string) {
	c.lru.Remove(key)
}
