// Package cache is the client-side query cache. Entries are addressed by
// ordered keys and invalidated by key prefix, so invalidating "resources"
// leaves ["resource", id] alone while ["resource"] covers every detail entry.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Key addresses a cached query
type Key []string

// K builds a Key from its parts
func K(parts ...string) Key { return Key(parts) }

var (
	KeyResources  = K("resources")
	KeySummary    = K("summary")
	KeyCategories = K("categories")
)

// ResourceKey addresses a single resource's detail entry
func ResourceKey(id string) Key { return K("resource", id) }

// HasPrefix reports whether p matches the leading parts of k
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

func (k Key) String() string { return strings.Join(k, "/") }

// unit separator keeps ["a/b"] and ["a","b"] distinct
func (k Key) id() string { return strings.Join(k, "\x1f") }

type entry struct {
	key   Key
	value any
	stale bool
}

// flight is a fetch in progress; an invalidation that lands while it runs
// makes its result stale on arrival
type flight struct {
	key         Key
	invalidated bool
}

// Cache holds query results until they are invalidated
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	flights map[*flight]struct{}
	subs    map[int]func(Key)
	nextSub int
	group   singleflight.Group
	logger  *zap.Logger
}

// New creates an empty Cache
func New(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]*entry),
		flights: make(map[*flight]struct{}),
		subs:    make(map[int]func(Key)),
		logger:  logger,
	}
}

// Query returns the fresh cached value for key or runs fetch and caches its result.
// Concurrent queries for one key share a single fetch. The shared fetch is not
// cancelled with any one caller; each caller stops waiting when its own ctx ends.
func Query[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.lookup(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.id(), func() (any, error) {
		f := c.begin(key)
		c.logger.Debug("cache fetch", zap.Stringer("key", key))
		v, err := fetch(fetchCtx)
		c.finish(f, v, err)
		if err != nil {
			return nil, err
		}
		return v, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if res.Err != nil {
		return zero, res.Err
	}
	typed, ok := res.Val.(T)
	if !ok {
		return zero, fmt.Errorf("cache: %s holds %T", key, res.Val)
	}
	return typed, nil
}

func (c *Cache) begin(key Key) *flight {
	f := &flight{key: append(Key(nil), key...)}
	c.mu.Lock()
	c.flights[f] = struct{}{}
	c.mu.Unlock()
	return f
}

// finish records a completed fetch, stale if it was invalidated mid-flight
func (c *Cache) finish(f *flight, value any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.flights, f)
	if err != nil {
		return
	}
	c.entries[f.key.id()] = &entry{key: f.key, value: value, stale: f.invalidated}
}

func (c *Cache) lookup(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id()]
	if !ok || e.stale {
		return nil, false
	}
	return e.value, true
}

// Set stores a fresh value for key
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key.id()] = &entry{
		key:   append(Key(nil), key...),
		value: value,
	}
}

// Invalidate marks every entry under prefix stale and notifies subscribers
func (c *Cache) Invalidate(prefix Key) {
	c.mu.Lock()
	marked := 0
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
			marked++
		}
	}
	for f := range c.flights {
		if f.key.HasPrefix(prefix) && !f.invalidated {
			f.invalidated = true
			// later queries start a new fetch instead of joining this one
			c.group.Forget(f.key.id())
		}
	}
	subs := make([]func(Key), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	c.logger.Debug("cache invalidated", zap.Stringer("key", prefix), zap.Int("entries", marked))
	for _, fn := range subs {
		fn(prefix)
	}
}

// Subscribe registers fn for invalidation events; call cancel to stop
func (c *Cache) Subscribe(fn func(Key)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// IsStale reports whether key is missing or invalidated
func (c *Cache) IsStale(key Key) bool {
	_, ok := c.lookup(key)
	return !ok
}

// Len returns the number of entries, stale ones included
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
