package testutil

import (
	"context"
	"sync"

	"github.com/Thirdegree/TheSentinel/internal/media"
	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// StubResolver is a media.Resolver with canned metadata per external ID.
// Fetch counts calls and optionally blocks on Gate until it is closed, which
// lets concurrency tests hold a fetch in flight.
type StubResolver struct {
	mu        sync.Mutex
	meta      map[string]media.Metadata
	err       map[string]error
	relations map[string]map[string]sentinel.ResourceIdentity
	calls     map[string]int

	// Gate, when non-nil, blocks every Fetch until the channel is closed.
	Gate chan struct{}
}

var _ media.Resolver = (*StubResolver)(nil)

// NewStubResolver creates an empty StubResolver.
func NewStubResolver() *StubResolver {
	return &StubResolver{
		meta:      make(map[string]media.Metadata),
		err:       make(map[string]error),
		relations: make(map[string]map[string]sentinel.ResourceIdentity),
		calls:     make(map[string]int),
	}
}

// SetMetadata registers canned metadata for an external ID.
func (r *StubResolver) SetMetadata(externalID string, meta media.Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta[externalID] = meta
	delete(r.err, externalID)
}

// SetError makes Fetch fail for an external ID.
func (r *StubResolver) SetError(externalID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err[externalID] = err
}

// SetRelations registers derived identities returned by Relations when the
// metadata carries the matching external ID under the "id" key.
func (r *StubResolver) SetRelations(externalID string, rel map[string]sentinel.ResourceIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relations[externalID] = rel
}

// Calls returns how many times Fetch was invoked for an external ID.
func (r *StubResolver) Calls(externalID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[externalID]
}

func (r *StubResolver) Fetch(ctx context.Context, externalID string) (media.Metadata, error) {
	r.mu.Lock()
	r.calls[externalID]++
	gate := r.Gate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.err[externalID]; ok {
		return nil, err
	}
	meta, ok := r.meta[externalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	// Tag the metadata so Relations can find the canned entry.
	tagged := media.Metadata{"id": externalID}
	for k, v := range meta {
		tagged[k] = v
	}
	return tagged, nil
}

func (r *StubResolver) Relations(meta media.Metadata) (map[string]sentinel.ResourceIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, _ := meta["id"].(string)
	rel, ok := r.relations[id]
	if !ok {
		return map[string]sentinel.ResourceIdentity{}, nil
	}
	return rel, nil
}
