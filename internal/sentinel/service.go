package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Service is the orchestration layer that ties the matcher registry, the
// identity cache, and the ledger together for the operations the CLI and the
// community workers need.
type Service struct {
	ledger Ledger
	media  MediaResolver
	vault  Vault
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewService creates a Service with the provided dependencies. vault may be
// nil when no audit archive is configured.
func NewService(ledger Ledger, media MediaResolver, vault Vault, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		ledger: ledger,
		media:  media,
		vault:  vault,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// Decision is the moderation verdict for a single media reference. What to do
// with a blacklisted reference is the caller's policy.
type Decision struct {
	ThingID     string
	Reference   MediaReference
	Blacklisted bool
}

// ProcessBatch expands raw items into content items and media references,
// persists them through the ledger, and evaluates the blacklist for every
// reference. A ledger or blacklist failure aborts the batch; callers can
// re-submit the same batch safely because all writes are idempotent.
func (s *Service) ProcessBatch(ctx context.Context, raw []RawItem) ([]Decision, error) {
	items := make([]ContentItem, 0, len(raw))
	refs := make([]MediaReference, 0, len(raw))
	communities := make(map[string]string, len(raw))

	for _, r := range raw {
		items = append(items, r.contentItem())
		communities[r.ThingID] = r.Community
		refs = append(refs, s.expandReferences(ctx, r)...)
	}

	if err := s.ledger.SubmitBatch(items, refs); err != nil {
		return nil, fmt.Errorf("persisting batch: %w", err)
	}
	s.logger.Debug("batch persisted", "items", len(items), "references", len(refs))

	decisions := make([]Decision, 0, len(refs))
	for _, ref := range refs {
		q := BlacklistQuery{Author: ref.Author, Platform: ref.Identity.Kind.Platform()}
		if ref.Identity.Kind.IsChannel() {
			q.ChannelID = ref.Identity.ExternalID
		}
		// A reference that degraded to a non-channel identity with no author
		// has nothing the ledger can match on; record it as clear rather than
		// asking a question the ledger must reject.
		if q.ChannelID == "" && q.Author == "" {
			decisions = append(decisions, Decision{ThingID: ref.ThingID, Reference: ref})
			continue
		}
		banned, err := s.ledger.IsBlacklisted(communities[ref.ThingID], q)
		if err != nil {
			// Never coerce a failed lookup to a verdict.
			return nil, fmt.Errorf("evaluating blacklist for %s: %w", ref.ThingID, err)
		}
		decisions = append(decisions, Decision{ThingID: ref.ThingID, Reference: ref, Blacklisted: banned})
	}
	return decisions, nil
}

// expandReferences turns one raw item's comma-aligned media annotations into
// media references with canonical identities.
func (s *Service) expandReferences(ctx context.Context, r RawItem) []MediaReference {
	authors, channels, urls, platforms := r.mediaFields()

	n := len(authors)
	for _, l := range []int{len(channels), len(urls), len(platforms)} {
		if l > n {
			n = l
		}
	}

	refs := make([]MediaReference, 0, n)
	for i := 0; i < n; i++ {
		author := alignedAt(authors, i)
		channel := alignedAt(channels, i)
		url := alignedAt(urls, i)
		platform := alignedAt(platforms, i)

		if channel == "" && url == "" {
			continue
		}

		var id ResourceIdentity
		switch {
		case channel != "":
			kind, ok := s.media.ChannelKind(platform)
			if !ok {
				s.logger.Warn("unregistered media platform", "platform", platform, "thing", r.ThingID)
				kind = ResourceKind(platform + "/channel")
			}
			id = ResourceIdentity{Kind: kind, ExternalID: channel}
		default:
			matched, ok := s.media.Identify(url)
			if !ok {
				s.logger.Debug("no matcher for media url", "url", url, "thing", r.ThingID)
				continue
			}
			id = matched
			// Prefer the owning channel when metadata is reachable; on a
			// remote failure the reference keeps the directly matched
			// identity and a later re-submission upgrades it.
			if ch, err := s.media.ChannelFor(ctx, matched); err == nil {
				id = ch
			} else {
				s.logger.Warn("channel resolution failed", "identity", matched.String(), "error", err)
			}
		}

		refs = append(refs, MediaReference{
			ThingID:  r.ThingID,
			Identity: id,
			Author:   author,
			URL:      url,
			LastSeen: s.clock.Now(),
		})
	}
	return refs
}

// IsBlacklisted answers whether the channel is banned for the community.
func (s *Service) IsBlacklisted(community string, q BlacklistQuery) (bool, error) {
	return s.ledger.IsBlacklisted(community, q)
}

// Blacklist adds an active ban attributed to actor.
func (s *Service) Blacklist(community, platform, channelID, actor string) error {
	entry := BlacklistEntry{
		Community: community,
		Platform:  platform,
		ChannelID: channelID,
		AddedBy:   actor,
		AddedAt:   s.clock.Now(),
	}
	if err := s.ledger.AddBlacklist(entry); err != nil {
		return fmt.Errorf("adding blacklist entry: %w", err)
	}
	s.logger.Info("channel blacklisted", "community", community, "channel", channelID, "by", actor)
	return nil
}

// Unblacklist retires the active ban for the key, attributed to actor.
func (s *Service) Unblacklist(community, platform, channelID, actor string) error {
	if err := s.ledger.RemoveBlacklist(community, platform, channelID, actor); err != nil {
		return fmt.Errorf("removing blacklist entry: %w", err)
	}
	s.logger.Info("channel unblacklisted", "community", community, "channel", channelID, "by", actor)
	return nil
}

// MarkActioned records that the item was removed. Idempotent.
func (s *Service) MarkActioned(thingID string) error {
	if err := s.ledger.MarkActioned(thingID); err != nil {
		return fmt.Errorf("marking %s actioned: %w", thingID, err)
	}
	return nil
}

// ProcessedThings returns thing ids already recorded for the communities.
func (s *Service) ProcessedThings(communities []string) ([]string, error) {
	return s.ledger.ProcessedThings(communities)
}

// ResolveChannel resolves a media URL to its identity and owning channel.
// The channel identity is zero when the resource has no channel relation.
func (s *Service) ResolveChannel(ctx context.Context, url string) (ResourceIdentity, ResourceIdentity, error) {
	id, ok := s.media.Identify(url)
	if !ok {
		return ResourceIdentity{}, ResourceIdentity{}, fmt.Errorf("%w: no platform matches %q", ErrNotFound, url)
	}
	ch, err := s.media.ChannelFor(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return id, ResourceIdentity{}, nil
		}
		return id, ResourceIdentity{}, fmt.Errorf("resolving channel for %s: %w", id.String(), err)
	}
	return id, ch, nil
}

// auditArchive is the JSON document ExportAudit writes to the vault.
type auditArchive struct {
	ID         string            `json:"id"`
	ExportedAt time.Time         `json:"exported_at"`
	Active     []BlacklistEntry  `json:"active"`
	History    []BlacklistRecord `json:"history"`
}

// AuditArchiveName is the vault key audit exports are stored under.
const AuditArchiveName = "blacklist"

// ExportAudit snapshots the active blacklist plus its full history into the
// configured vault and returns the new archive version.
func (s *Service) ExportAudit() (int64, error) {
	if s.vault == nil {
		return 0, fmt.Errorf("no audit vault configured")
	}

	active, err := s.ledger.ActiveBlacklist()
	if err != nil {
		return 0, fmt.Errorf("reading active blacklist: %w", err)
	}
	history, err := s.ledger.BlacklistHistory()
	if err != nil {
		return 0, fmt.Errorf("reading blacklist history: %w", err)
	}

	archive := auditArchive{
		ID:         s.idgen.New(),
		ExportedAt: s.clock.Now(),
		Active:     active,
		History:    history,
	}
	data, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encoding audit archive: %w", err)
	}

	version, err := s.vault.ArchiveVersion(AuditArchiveName)
	if err != nil {
		return 0, fmt.Errorf("reading archive version: %w", err)
	}
	version++

	if err := s.vault.PutArchive(AuditArchiveName, bytes.NewReader(data), int64(len(data)), version); err != nil {
		return 0, fmt.Errorf("storing audit archive: %w", err)
	}
	s.logger.Info("audit archive exported", "version", version, "active", len(active), "history", len(history))
	return version, nil
}
