package sentinel

import "context"

// MediaResolver turns raw media annotations into canonical resource
// identities. Implemented by the identity cache in internal/media.
type MediaResolver interface {
	// Identify resolves a URL to a resource identity through the platform
	// matcher registry. ok is false when no registered pattern matches.
	Identify(url string) (id ResourceIdentity, ok bool)

	// ChannelFor resolves the channel that owns the given resource. Channel
	// identities resolve to themselves; other kinds go through the resource's
	// remote metadata, so this may perform a fetch.
	ChannelFor(ctx context.Context, id ResourceIdentity) (ResourceIdentity, error)

	// ChannelKind returns the channel resource kind for a platform name
	// ("youtube" -> "youtube/channel"). ok is false for unknown platforms.
	ChannelKind(platform string) (kind ResourceKind, ok bool)
}
