// Package app is the application layer between the CLI and the sentinel
// service. It constructs all dependencies from config and manages their
// lifecycle on Close.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thirdegree/TheSentinel/internal/config"
	"github.com/Thirdegree/TheSentinel/internal/database"
	"github.com/Thirdegree/TheSentinel/internal/database/migrations"
	"github.com/Thirdegree/TheSentinel/internal/encryption"
	"github.com/Thirdegree/TheSentinel/internal/media"
	"github.com/Thirdegree/TheSentinel/internal/sentinel"
	"github.com/Thirdegree/TheSentinel/internal/vault"
)

// SentinelApp wires the matcher registry, identity cache, ledger, vault, and
// encryptor into a Service. The caller must call Close when done.
type SentinelApp struct {
	cfg       *config.Config
	ledger    sentinel.Ledger
	cache     *media.Cache
	vault     sentinel.Vault
	encryptor sentinel.Encryptor
	service   *sentinel.Service
	logFile   *os.File
}

// NewSentinelApp creates a fully wired SentinelApp from the given config.
// operation identifies the CLI command being run (e.g. "Blacklist", "Submit").
func NewSentinelApp(cfg *config.Config, operation string) (*SentinelApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("operation", operation)}

	scope := sentinel.DefaultScope()
	if cfg.PublicCommunity != "" {
		scope.Public = cfg.PublicCommunity
	}
	if len(cfg.GlobalSignalCommunities) > 0 {
		scope.GlobalSignals = cfg.GlobalSignalCommunities
	}

	registry, err := media.NewYouTubeRegistry(media.YouTubeOptions{
		APIKey:  cfg.YouTube.APIKey,
		APIBase: cfg.YouTube.APIBase,
	})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating media registry: %w", err)
	}

	cache, err := media.NewCache(registry, cfg.Cache.Size, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating identity cache: %w", err)
	}

	ledger, err := database.NewLedgerFromConfig(cfg.Database, scope, sentinel.RealClock{}, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating ledger: %w", err)
	}

	if sl, ok := ledger.(*database.SQLiteLedger); ok {
		if err := migrations.MigrateUp(sl.DB()); err != nil {
			ledger.Close()
			logFile.Close()
			return nil, fmt.Errorf("migrating ledger schema: %w", err)
		}
	}

	var v sentinel.Vault
	if cfg.Vault.Type != "" {
		v, err = vault.NewVaultFromConfig(cfg.Vault)
		if err != nil {
			ledger.Close()
			logFile.Close()
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		ledger.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	svc := sentinel.NewService(ledger, cache, v, logger, sentinel.RealClock{}, sentinel.UUIDGenerator{})

	return &SentinelApp{
		cfg:       cfg,
		ledger:    ledger,
		cache:     cache,
		vault:     v,
		encryptor: enc,
		service:   svc,
		logFile:   logFile,
	}, nil
}

// ProcessBatch persists a batch of raw content items and returns the
// moderation decisions for their media references.
func (a *SentinelApp) ProcessBatch(ctx context.Context, raw []sentinel.RawItem) ([]sentinel.Decision, error) {
	return a.service.ProcessBatch(ctx, raw)
}

// CheckBlacklist reports whether the given channel or author is banned for a
// community.
func (a *SentinelApp) CheckBlacklist(community string, q sentinel.BlacklistQuery) (bool, error) {
	return a.service.IsBlacklisted(community, q)
}

// AddBlacklist bans a channel for a community, attributed to actor.
func (a *SentinelApp) AddBlacklist(community, platform, channelID, actor string) error {
	return a.service.Blacklist(community, platform, channelID, actor)
}

// RemoveBlacklist lifts a ban, moving the entry into the removal history.
func (a *SentinelApp) RemoveBlacklist(community, platform, channelID, actor string) error {
	return a.service.Unblacklist(community, platform, channelID, actor)
}

// ActiveBlacklist returns all currently active blacklist entries.
func (a *SentinelApp) ActiveBlacklist() ([]sentinel.BlacklistEntry, error) {
	return a.ledger.ActiveBlacklist()
}

// BlacklistHistory returns all removed blacklist entries with attribution.
func (a *SentinelApp) BlacklistHistory() ([]sentinel.BlacklistRecord, error) {
	return a.ledger.BlacklistHistory()
}

// MarkActioned records that moderation action has been taken on a thing.
func (a *SentinelApp) MarkActioned(thingID string) error {
	return a.service.MarkActioned(thingID)
}

// ProcessedThings returns the IDs of things already processed for the given
// communities.
func (a *SentinelApp) ProcessedThings(communities []string) ([]string, error) {
	return a.service.ProcessedThings(communities)
}

// ResolveChannel resolves a media URL to its resource identity and owning
// channel. The channel identity is zero when the remote resource is gone.
func (a *SentinelApp) ResolveChannel(ctx context.Context, url string) (sentinel.ResourceIdentity, sentinel.ResourceIdentity, error) {
	return a.service.ResolveChannel(ctx, url)
}

// ExportAudit uploads a snapshot of the blacklist and its history to the
// configured vault and returns the new archive version.
func (a *SentinelApp) ExportAudit() (int64, error) {
	if a.vault == nil {
		return 0, fmt.Errorf("no vault configured")
	}
	return a.service.ExportAudit()
}

// Close releases the ledger connection and the log file.
func (a *SentinelApp) Close() error {
	var firstErr error

	if err := a.ledger.Close(); err != nil {
		firstErr = fmt.Errorf("closing ledger: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
