package sentinel

import "time"

// CommunityScope controls how blacklist queries are scoped across communities.
type CommunityScope struct {
	// Public is a read-only community: IsBlacklisted always answers false for
	// it, regardless of ledger content. Matched case-insensitively.
	Public string

	// GlobalSignals are communities whose blacklist entries are honored when
	// any other community is queried. A channel blacklisted under one of them
	// is treated as blacklisted everywhere except the public community.
	GlobalSignals []string
}

// DefaultScope returns the scope the bot has always run with.
func DefaultScope() CommunityScope {
	return CommunityScope{
		Public:        "videos",
		GlobalSignals: []string{"yt_killer", "thesentinelbot"},
	}
}

// BlacklistQuery carries the references available when asking whether content
// should be suppressed. At least one of ChannelID or Author must be set.
type BlacklistQuery struct {
	ChannelID string
	Author    string
	Platform  string
}

// BlacklistEntry is an active ban for a channel within a community.
// Unique per (community, platform, channel id) while active.
type BlacklistEntry struct {
	Community string
	Platform  string
	ChannelID string
	AddedBy   string
	AddedAt   time.Time
}

// BlacklistRecord is a retired ban: the original entry plus removal
// attribution. History rows are append-only.
type BlacklistRecord struct {
	BlacklistEntry
	RemovedBy string
	RemovedAt time.Time
}

// ContentItem is a single moderated unit (post or comment). Immutable once
// recorded; ThingID is the natural key.
type ContentItem struct {
	ThingID    string
	Author     string
	Community  string
	CreatedAt  time.Time
	Permalink  string
	Body       string
	ParentID   string
	Title      string
	URL        string
	FlairClass string
	FlairText  string
}

// MediaReference links a content item to an external media resource. The same
// channel can be referenced by many items; re-observing a (thing, identity)
// pair only refreshes LastSeen.
type MediaReference struct {
	ThingID  string
	Identity ResourceIdentity
	Author   string
	URL      string
	LastSeen time.Time
}

// ActionRecord tracks the moderation lifecycle of a content item. Removed
// flips from false to true exactly once.
type ActionRecord struct {
	ThingID  string
	Removed  bool
	ActionAt time.Time
}

// Ledger is the persistent blacklist and moderation store. Implementations
// must be safe for concurrent use from multiple workers; per-key ordering is
// enforced with database transactions, not in-process locks.
type Ledger interface {
	// IsBlacklisted reports whether the queried channel is banned for the
	// community. The public community always answers false; global-signal
	// communities are matched in the same lookup as the exact community.
	// Fails with ErrMissingReference when the query carries neither a channel
	// nor an author.
	IsBlacklisted(community string, q BlacklistQuery) (bool, error)

	// AddBlacklist inserts an active entry. Adding an already-active
	// (community, platform, channel) is a successful no-op. Fails with
	// ErrMissingReference without a channel id and ErrMissingField when
	// attribution is absent.
	AddBlacklist(entry BlacklistEntry) error

	// RemoveBlacklist retires the active entry for the key, moving it to
	// history with removal attribution in one transaction. Removing a key
	// with no active entry is a successful no-op.
	RemoveBlacklist(community, platform, channelID, actor string) error

	// ActiveBlacklist returns all active entries.
	ActiveBlacklist() ([]BlacklistEntry, error)

	// BlacklistHistory returns all retired entries, oldest first.
	BlacklistHistory() ([]BlacklistRecord, error)

	// SubmitBatch persists content items, their media references, and one
	// pending action record per item, all in one transaction using idempotent
	// upserts. Re-submitting a known batch neither errors nor duplicates.
	SubmitBatch(items []ContentItem, refs []MediaReference) error

	// MarkActioned flips the item's action record to removed. Re-marking an
	// already-removed item is a no-op.
	MarkActioned(thingID string) error

	// ProcessedThings returns the thing ids already recorded for the given
	// communities, including everything recorded under the global-signal
	// communities.
	ProcessedThings(communities []string) ([]string, error)

	// Close closes the underlying store.
	Close() error
}
