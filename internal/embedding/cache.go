package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
)

// Cache stores vectors by key.
type Cache interface {
	// GetMany returns the cached vector for each key, nil on a miss.
	GetMany(ctx context.Context, keys []string) ([][]float32, error)

	// SetMany stores the vectors under keys.
	SetMany(ctx context.Context, keys []string, vectors [][]float32) error
}

// CachedProvider serves repeated texts from a Cache and only sends misses to
// the wrapped provider. Cache failures degrade to uncached embedding.
type CachedProvider struct {
	inner Provider
	cache Cache
}

// WithCache wraps p with cache.
func WithCache(p Provider, cache Cache) *CachedProvider {
	return &CachedProvider{inner: p, cache: cache}
}

func (c *CachedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = cacheKey(c.inner.ModelID(), t)
	}

	out, err := c.cache.GetMany(ctx, keys)
	if err != nil || len(out) != len(texts) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: embedding cache read failed: %v\n", err)
		}
		out = make([][]float32, len(texts))
	}

	// Each distinct missing text is embedded once.
	var missTexts, missKeys []string
	pos := make(map[string][]int)
	for i, v := range out {
		if v != nil {
			continue
		}
		if _, seen := pos[keys[i]]; !seen {
			missTexts = append(missTexts, texts[i])
			missKeys = append(missKeys, keys[i])
		}
		pos[keys[i]] = append(pos[keys[i]], i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(vectors), len(missTexts)); err != nil {
		return nil, err
	}
	for j, key := range missKeys {
		for _, i := range pos[key] {
			out[i] = slices.Clone(vectors[j])
		}
	}

	if err := c.cache.SetMany(ctx, missKeys, vectors); err != nil {
		fmt.Fprintf(os.Stderr, "warning: embedding cache write failed: %v\n", err)
	}
	return out, nil
}

func (c *CachedProvider) ModelID() string {
	return c.inner.ModelID()
}

// Ping checks that a remote cache is reachable. In-process caches always
// succeed.
func (c *CachedProvider) Ping(ctx context.Context) error {
	if p, ok := c.cache.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the cache connection, if any.
func (c *CachedProvider) Close() error {
	if closer, ok := c.cache.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "|" + text))
	return hex.EncodeToString(sum[:])
}

// MemoryCache is a bounded in-process LRU cache. It is safe for concurrent
// use.
type MemoryCache struct {
	mu    sync.Mutex
	size  int
	order *list.List
	items map[string]*list.Element
}

type memoryEntry struct {
	key    string
	vector []float32
}

// NewMemoryCache creates a cache holding at most size entries. Non-positive
// size selects 4096.
func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = 4096
	}
	return &MemoryCache{size: size, order: list.New(), items: make(map[string]*list.Element)}
}

func (m *MemoryCache) GetMany(_ context.Context, keys []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]float32, len(keys))
	for i, k := range keys {
		if el, ok := m.items[k]; ok {
			m.order.MoveToFront(el)
			out[i] = slices.Clone(el.Value.(*memoryEntry).vector)
		}
	}
	return out, nil
}

func (m *MemoryCache) SetMany(_ context.Context, keys []string, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, k := range keys {
		if el, ok := m.items[k]; ok {
			el.Value.(*memoryEntry).vector = slices.Clone(vectors[i])
			m.order.MoveToFront(el)
			continue
		}
		m.items[k] = m.order.PushFront(&memoryEntry{key: k, vector: slices.Clone(vectors[i])})
		for m.order.Len() > m.size {
			oldest := m.order.Back()
			m.order.Remove(oldest)
			delete(m.items, oldest.Value.(*memoryEntry).key)
		}
	}
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
