// Package media resolves arbitrary media URLs to canonical platform resource
// identities and memoizes their remote metadata in a bounded concurrent cache.
package media

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// Metadata is the raw remote payload for one resource, as decoded from JSON.
// Treat it as read-only: it is shared between every caller of the cache.
type Metadata map[string]any

// RelationChannel names the relation linking a resource to its owning channel.
const RelationChannel = "channel"

// Resolver is the per-kind fetch strategy: how to load a resource's remote
// metadata and how to derive related resource identities from it.
type Resolver interface {
	// Fetch loads the raw metadata for the resource with the given external
	// id. Fails with sentinel.ErrRemoteUnavailable on transient errors and
	// sentinel.ErrNotFound when the remote confirms the resource is absent.
	Fetch(ctx context.Context, externalID string) (Metadata, error)

	// Relations derives related resource identities (keyed by relation name)
	// from already-fetched metadata. May return an empty map.
	Relations(meta Metadata) (map[string]sentinel.ResourceIdentity, error)
}

type rule struct {
	pattern *regexp.Regexp
	idIndex int
	kind    sentinel.ResourceKind
}

// Registry holds the ordered set of (pattern, kind) matcher rules plus the
// resolver for each registered kind. Adding a platform is a registration, not
// a code change anywhere else: no existing rule is consulted or reordered.
type Registry struct {
	rules        []rule
	resolvers    map[sentinel.ResourceKind]Resolver
	channelKinds map[string]sentinel.ResourceKind
}

func NewRegistry() *Registry {
	return &Registry{
		resolvers:    make(map[sentinel.ResourceKind]Resolver),
		channelKinds: make(map[string]sentinel.ResourceKind),
	}
}

// Register appends a matcher rule for kind and installs its resolver. The
// pattern must carry a named "id" capture group; matching is a search within
// the URL, so patterns should terminate the id at trailing delimiters rather
// than assume they see the whole URL.
func (r *Registry) Register(kind sentinel.ResourceKind, pattern *regexp.Regexp, resolver Resolver) error {
	idIndex := pattern.SubexpIndex("id")
	if idIndex < 0 {
		return fmt.Errorf("pattern for %q has no named group \"id\"", kind)
	}
	r.rules = append(r.rules, rule{pattern: pattern, idIndex: idIndex, kind: kind})
	r.resolvers[kind] = resolver
	return nil
}

// RegisterChannelKind maps a platform name ("youtube") to its channel kind so
// pre-annotated channel ids can be given canonical identities.
func (r *Registry) RegisterChannelKind(platform string, kind sentinel.ResourceKind) {
	r.channelKinds[platform] = kind
}

// Resolve returns the identity extracted by the first rule whose pattern
// matches somewhere in the URL. ok is false when no rule matches.
func (r *Registry) Resolve(url string) (sentinel.ResourceIdentity, bool) {
	for _, rule := range r.rules {
		m := rule.pattern.FindStringSubmatch(url)
		if m == nil {
			continue
		}
		return sentinel.ResourceIdentity{Kind: rule.kind, ExternalID: m[rule.idIndex]}, true
	}
	return sentinel.ResourceIdentity{}, false
}

// ChannelKind returns the channel kind registered for the platform name.
func (r *Registry) ChannelKind(platform string) (sentinel.ResourceKind, bool) {
	kind, ok := r.channelKinds[platform]
	return kind, ok
}

func (r *Registry) resolver(kind sentinel.ResourceKind) (Resolver, bool) {
	res, ok := r.resolvers[kind]
	return res, ok
}
