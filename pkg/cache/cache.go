// Package cache provides a thread-safe LRU cache for compiled Amoskeag
// programs.
//
// The cache backs the facade's WithCaching option: it avoids re-compiling
// the same source on every EvalExpression call, which is valuable when the
// same expression is applied to many different data contexts. Unlike a
// cache of plain values, entries own a native handle, so eviction and Clear
// dispose the programs they drop.
package cache

import (
	"container/list"
	"fmt"
	"strings"
	"sync"

	"github.com/durable-oss/amoskeag/pkg/program"
)

// entry is a cache entry stored in the doubly-linked list.
type entry struct {
	key  string
	prog *program.Program
}

// Cache is a thread-safe LRU cache of compiled programs. Once the capacity
// is reached, the least recently used program is evicted and disposed.
//
// Safe for concurrent use by multiple goroutines. Eviction disposes the
// dropped program immediately, so a caller holding a program obtained from
// Get or GetOrCompile can see it disposed by a concurrent eviction; its next
// evaluation then fails with a contract error rather than reaching the
// released handle. Size the capacity above the working set to avoid this.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

// New creates a new LRU cache with the given capacity.
// capacity must be > 0; if <= 0, a default of 256 is used.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 256
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Key builds the cache key for a source/symbols pair. Every component is
// length-prefixed, so distinct pairs never collide regardless of what bytes
// the source or symbol names contain.
func Key(source string, symbols []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%s", len(source), source)
	for _, s := range symbols {
		fmt.Fprintf(&b, "\x1f%d:%s", len(s), s)
	}
	return b.String()
}

// Get retrieves a program from the cache.
// Returns (prog, true) if found and moves the entry to front (MRU).
func (c *Cache) Get(key string) (*program.Program, bool) {
	c.mu.RLock()
	el, ok := c.items[key]
	alreadyFront := ok && c.ll.Front() == el
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !alreadyFront {
		// Promote to front under write lock; re-check in case of concurrent
		// eviction.
		c.mu.Lock()
		el, ok = c.items[key]
		if ok {
			c.ll.MoveToFront(el)
		}
		c.mu.Unlock()

		if !ok {
			return nil, false
		}
	}
	return el.Value.(*entry).prog, true
}

// Set inserts or replaces a program in the cache. A replaced program and
// any evicted one are disposed.
func (c *Cache) Set(key string, prog *program.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		old := el.Value.(*entry)
		if old.prog != prog {
			_ = old.prog.Close()
		}
		old.prog = prog
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		c.evictLocked()
	}

	el := c.ll.PushFront(&entry{key: key, prog: prog})
	c.items[key] = el
}

// GetOrCompile retrieves the program for key from cache, or calls compile()
// to create it, caches the result, and returns it.
// compile errors are not cached.
func (c *Cache) GetOrCompile(key string, compile func() (*program.Program, error)) (*program.Program, error) {
	if prog, ok := c.Get(key); ok {
		return prog, nil
	}
	prog, err := compile()
	if err != nil {
		return nil, err
	}
	c.Set(key, prog)
	return prog, nil
}

// Len returns the number of programs currently in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return n
}

// Capacity returns the maximum number of programs the cache can hold.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Invalidate removes and disposes a single program.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
		_ = el.Value.(*entry).prog.Close()
	}
}

// Clear removes and disposes every cached program.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, el := range c.items {
		_ = el.Value.(*entry).prog.Close()
	}
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

// evictLocked removes and disposes the least recently used program.
// Must be called with c.mu held for writing.
func (c *Cache) evictLocked() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
	_ = el.Value.(*entry).prog.Close()
}
