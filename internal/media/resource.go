package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// Resource is a cached external resource: its identity plus lazily-populated
// remote metadata and derived-relation slots. Resources are owned by the
// cache; callers hold them only to read.
type Resource struct {
	identity sentinel.ResourceIdentity
	cache    *Cache

	mu      sync.Mutex
	meta    Metadata
	derived map[string]sentinel.ResourceIdentity
}

// Identity returns the resource's canonical identity.
func (r *Resource) Identity() sentinel.ResourceIdentity { return r.identity }

// Metadata returns the resource's remote metadata, fetching it on first
// access. Concurrent first accesses collapse into a single outbound fetch;
// the rest wait for its result. Fetch failures propagate and are never
// memoized — the next access retries.
func (r *Resource) Metadata(ctx context.Context) (Metadata, error) {
	r.mu.Lock()
	if r.meta != nil {
		m := r.meta
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()

	resolver, ok := r.cache.registry.resolver(r.identity.Kind)
	if !ok {
		return nil, fmt.Errorf("no resolver registered for kind %q", r.identity.Kind)
	}

	v, err, _ := r.cache.group.Do(r.identity.String(), func() (any, error) {
		r.mu.Lock()
		if r.meta != nil {
			m := r.meta
			r.mu.Unlock()
			return m, nil
		}
		r.mu.Unlock()

		r.cache.pinEntry(r.identity, r)
		defer r.cache.unpinEntry(r.identity, r)

		// An abandoning caller must not cancel the fetch other callers are
		// waiting on.
		m, err := resolver.Fetch(context.WithoutCancel(ctx), r.identity.ExternalID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.meta = m
		r.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", r.identity.String(), err)
	}
	return v.(Metadata), nil
}

// Derived resolves and memoizes a cross-resource link (e.g. a video's
// "channel"). The derived identity goes back through the cache, so it shares
// an instance and the eviction policy with directly-resolved resources.
// Unknown relations fail with sentinel.ErrNotFound.
func (r *Resource) Derived(ctx context.Context, relation string) (*Resource, error) {
	r.mu.Lock()
	if id, ok := r.derived[relation]; ok {
		r.mu.Unlock()
		return r.cache.Get(id), nil
	}
	r.mu.Unlock()

	meta, err := r.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	resolver, ok := r.cache.registry.resolver(r.identity.Kind)
	if !ok {
		return nil, fmt.Errorf("no resolver registered for kind %q", r.identity.Kind)
	}
	relations, err := resolver.Relations(meta)
	if err != nil {
		return nil, fmt.Errorf("deriving relations for %s: %w", r.identity.String(), err)
	}
	id, ok := relations[relation]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %q relation", sentinel.ErrNotFound, r.identity.String(), relation)
	}

	r.mu.Lock()
	if r.derived == nil {
		r.derived = make(map[string]sentinel.ResourceIdentity)
	}
	r.derived[relation] = id
	r.mu.Unlock()

	return r.cache.Get(id), nil
}
