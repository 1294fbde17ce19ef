package sentinel

import "strings"

// ResourceKind identifies an external platform resource type, written as
// "<platform>/<class>", e.g. "youtube/video" or "youtube/channel".
// Each registered kind owns a URL matching pattern and a fetch strategy
// (see internal/media).
type ResourceKind string

// Platform returns the platform part of the kind ("youtube" for "youtube/video").
func (k ResourceKind) Platform() string {
	if i := strings.IndexByte(string(k), '/'); i >= 0 {
		return string(k)[:i]
	}
	return string(k)
}

// Class returns the resource class part of the kind ("video" for "youtube/video").
// Empty when the kind carries no class.
func (k ResourceKind) Class() string {
	if i := strings.IndexByte(string(k), '/'); i >= 0 {
		return string(k)[i+1:]
	}
	return ""
}

// IsChannel reports whether the kind names a channel resource.
func (k ResourceKind) IsChannel() bool { return k.Class() == "channel" }

// ResourceIdentity is the canonical name of an external resource: the
// (kind, external id) pair, independent of whatever URL was used to reach it.
// It is the cache key and the ledger key component. Never mutated after
// construction.
type ResourceIdentity struct {
	Kind       ResourceKind
	ExternalID string
}

// IsZero reports whether the identity is unset.
func (id ResourceIdentity) IsZero() bool {
	return id.Kind == "" && id.ExternalID == ""
}

func (id ResourceIdentity) String() string {
	return string(id.Kind) + ":" + id.ExternalID
}
