package media

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// DefaultCacheSize is the entry bound used when no size is configured.
const DefaultCacheSize = 128

// Cache is the bounded resource identity cache. For a given identity all
// concurrent callers observe the same *Resource, metadata is fetched at most
// once per cache generation, and the least-recently-accessed entry is evicted
// when capacity is exceeded — unless its fetch is still in flight, which pins
// it.
//
// Callers need no external locking; Get calls for different identities never
// wait on each other's fetches.
type Cache struct {
	registry *Registry
	logger   sentinel.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries *lru.Cache[sentinel.ResourceIdentity, *Resource]
	pinned  map[sentinel.ResourceIdentity]*pin
}

type pin struct {
	res   *Resource
	count int
}

// NewCache creates a cache bounded to size entries over the given registry.
// size <= 0 selects DefaultCacheSize. logger may be nil.
func NewCache(registry *Registry, size int, logger sentinel.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = sentinel.NewNopLogger()
	}
	entries, err := lru.New[sentinel.ResourceIdentity, *Resource](size)
	if err != nil {
		return nil, fmt.Errorf("creating identity cache: %w", err)
	}
	return &Cache{
		registry: registry,
		logger:   logger,
		entries:  entries,
		pinned:   make(map[sentinel.ResourceIdentity]*pin),
	}, nil
}

// Get returns the cached resource for the identity, constructing it on first
// use. Construction is cheap: no remote call happens until Metadata is read.
func (c *Cache) Get(id sentinel.ResourceIdentity) *Resource {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pinned[id]; ok {
		c.entries.Get(id) // refresh recency if still resident
		return p.res
	}
	if r, ok := c.entries.Get(id); ok {
		return r
	}

	r := &Resource{identity: id, cache: c}
	if evicted := c.entries.Add(id, r); evicted {
		c.logger.Debug("identity cache evicted least-recently-used entry", "inserted", id.String())
	}
	return r
}

// FromURL composes the matcher registry with the cache: the URL is resolved
// to an identity and the cached resource for it is returned. ok is false when
// no registered pattern matches.
func (c *Cache) FromURL(url string) (*Resource, bool) {
	id, ok := c.registry.Resolve(url)
	if !ok {
		return nil, false
	}
	return c.Get(id), true
}

// Invalidate drops exactly the named entry, discarding any fetched metadata;
// the next Get reconstructs from scratch. Unknown identities are a no-op.
func (c *Cache) Invalidate(id sentinel.ResourceIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(id)
	delete(c.pinned, id)
	c.group.Forget(id.String())
}

// Len returns the number of resident entries. Pinned entries that were pushed
// out mid-fetch are not counted until their fetch completes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Identify implements sentinel.MediaResolver.
func (c *Cache) Identify(url string) (sentinel.ResourceIdentity, bool) {
	return c.registry.Resolve(url)
}

// ChannelKind implements sentinel.MediaResolver.
func (c *Cache) ChannelKind(platform string) (sentinel.ResourceKind, bool) {
	return c.registry.ChannelKind(platform)
}

// ChannelFor implements sentinel.MediaResolver. Channel identities resolve to
// themselves; anything else goes through the resource's metadata and the
// derived channel shares this cache with directly-resolved channels.
func (c *Cache) ChannelFor(ctx context.Context, id sentinel.ResourceIdentity) (sentinel.ResourceIdentity, error) {
	if id.Kind.IsChannel() {
		return id, nil
	}
	ch, err := c.Get(id).Derived(ctx, RelationChannel)
	if err != nil {
		return sentinel.ResourceIdentity{}, err
	}
	return ch.Identity(), nil
}

var _ sentinel.MediaResolver = (*Cache)(nil)

// pinEntry marks a resource as having an in-flight fetch so eviction cannot
// make a concurrent Get construct a second instance.
func (c *Cache) pinEntry(id sentinel.ResourceIdentity, r *Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pinned[id]; ok && p.res == r {
		p.count++
		return
	}
	c.pinned[id] = &pin{res: r, count: 1}
}

// unpinEntry releases the fetch pin. Re-adding the entry restores it (and its
// recency) if capacity pressure pushed it out of the LRU mid-fetch. When the
// pin was removed by Invalidate, the stale resource is not resurrected.
func (c *Cache) unpinEntry(id sentinel.ResourceIdentity, r *Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pinned[id]
	if !ok || p.res != r {
		return
	}
	if p.count--; p.count > 0 {
		return
	}
	delete(c.pinned, id)
	c.entries.Add(id, r)
}
