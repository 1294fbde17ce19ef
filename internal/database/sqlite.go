// Package database implements the blacklist ledger on SQLite.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// SQLiteLedger implements the sentinel.Ledger interface using SQLite.
// Community names are stored and compared lower-cased. Per-key ordering under
// concurrent writers comes from transactions and upsert statements, never
// from in-process locks: the ledger file may be shared by several worker
// processes.
type SQLiteLedger struct {
	db     *sql.DB
	scope  sentinel.CommunityScope
	clock  sentinel.Clock
	logger sentinel.Logger
}

// NewSQLiteLedger creates a new SQLite ledger.
// path can be a file path or ":memory:" for an in-memory database.
// clock and logger may be nil.
func NewSQLiteLedger(path string, scope sentinel.CommunityScope, clock sentinel.Clock, logger sentinel.Logger) (*SQLiteLedger, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteLedgerFromDB(db, scope, clock, logger), nil
}

// NewSQLiteLedgerFromDB wraps an existing database connection. The caller is
// responsible for ensuring the connection is properly configured.
func NewSQLiteLedgerFromDB(db *sql.DB, scope sentinel.CommunityScope, clock sentinel.Clock, logger sentinel.Logger) *SQLiteLedger {
	if clock == nil {
		clock = sentinel.RealClock{}
	}
	if logger == nil {
		logger = sentinel.NewNopLogger()
	}
	// Normalize a copy; the caller's slice stays untouched.
	signals := make([]string, len(scope.GlobalSignals))
	for i, c := range scope.GlobalSignals {
		signals[i] = strings.ToLower(c)
	}
	scope.GlobalSignals = signals
	return &SQLiteLedger{db: db, scope: scope, clock: clock, logger: logger}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the ledger needs. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys default to OFF in SQLite for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	// Concurrent community workers share the ledger file.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// DB exposes the underlying connection for migration checks.
func (l *SQLiteLedger) DB() *sql.DB { return l.db }

// IsBlacklisted reports whether an active entry bans the channel for the
// community. The public community short-circuits before any storage lookup;
// the global-signal match is an OR-condition inside the same SELECT as the
// exact-community match so two sequential queries can never observe different
// ledger states.
func (l *SQLiteLedger) IsBlacklisted(community string, q sentinel.BlacklistQuery) (bool, error) {
	if q.ChannelID == "" && q.Author == "" {
		return false, fmt.Errorf("%w: blacklist query for %q", sentinel.ErrMissingReference, community)
	}

	if strings.EqualFold(community, l.scope.Public) {
		l.logger.Debug("read-only community queried", "community", community, "channel", q.ChannelID)
		return false, nil
	}

	// Only channel references are authoritative; an author alone never bans.
	if q.ChannelID == "" {
		return false, nil
	}

	conditions := make([]string, 0, 1+len(l.scope.GlobalSignals))
	args := make([]any, 0, len(l.scope.GlobalSignals)+3)
	conditions = append(conditions, "community = ?")
	args = append(args, strings.ToLower(community))
	for _, c := range l.scope.GlobalSignals {
		conditions = append(conditions, "community = ?")
		args = append(args, c)
	}

	query := "SELECT 1 FROM blacklist WHERE (" + strings.Join(conditions, " OR ") + ") AND channel_id = ?"
	args = append(args, q.ChannelID)
	if q.Platform != "" {
		query += " AND platform = ?"
		args = append(args, q.Platform)
	}
	query += " LIMIT 1"

	var one int
	err := l.db.QueryRowContext(context.Background(), query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying blacklist: %w", err)
	}
	l.logger.Info("channel is blacklisted", "community", community, "channel", q.ChannelID, "platform", q.Platform)
	return true, nil
}

// AddBlacklist inserts an active entry. The insert is conflict-tolerant, so
// adding an already-active key succeeds without duplicating and without a
// read-then-write race.
func (l *SQLiteLedger) AddBlacklist(entry sentinel.BlacklistEntry) error {
	if entry.ChannelID == "" {
		return fmt.Errorf("%w: blacklist entry has no channel id", sentinel.ErrMissingReference)
	}
	for _, f := range []struct{ name, value string }{
		{"community", entry.Community},
		{"platform", entry.Platform},
		{"added_by", entry.AddedBy},
	} {
		if f.value == "" {
			return fmt.Errorf("%w: %s", sentinel.ErrMissingField, f.name)
		}
	}

	addedAt := entry.AddedAt
	if addedAt.IsZero() {
		addedAt = l.clock.Now()
	}

	_, err := l.db.ExecContext(context.Background(),
		`INSERT INTO blacklist (community, platform, channel_id, added_by, added_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (community, platform, channel_id) DO NOTHING`,
		strings.ToLower(entry.Community), entry.Platform, entry.ChannelID, entry.AddedBy, addedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting blacklist entry: %w", wrapConflict(err))
	}
	l.logger.Info("blacklist entry added", "community", entry.Community, "channel", entry.ChannelID, "by", entry.AddedBy)
	return nil
}

// RemoveBlacklist retires the active entry for the key: the row is copied to
// history with removal attribution and deleted, both inside one transaction.
// A key with no active entry is a successful no-op.
func (l *SQLiteLedger) RemoveBlacklist(community, platform, channelID, actor string) error {
	if channelID == "" {
		return fmt.Errorf("%w: blacklist removal has no channel id", sentinel.ErrMissingReference)
	}
	if actor == "" {
		return fmt.Errorf("%w: removed_by", sentinel.ErrMissingField)
	}

	ctx := context.Background()
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var entry sentinel.BlacklistEntry
	err = tx.QueryRowContext(ctx,
		`SELECT community, platform, channel_id, added_by, added_at
		 FROM blacklist
		 WHERE community = ? AND platform = ? AND channel_id = ?`,
		strings.ToLower(community), platform, channelID).
		Scan(&entry.Community, &entry.Platform, &entry.ChannelID, &entry.AddedBy, &entry.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading active entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO blacklist_history (community, platform, channel_id, added_by, added_at, removed_by, removed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Community, entry.Platform, entry.ChannelID, entry.AddedBy, entry.AddedAt, actor, l.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing history row: %w", wrapConflict(err))
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM blacklist WHERE community = ? AND platform = ? AND channel_id = ?`,
		entry.Community, entry.Platform, entry.ChannelID)
	if err != nil {
		return fmt.Errorf("deleting active entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing removal: %w", err)
	}
	l.logger.Info("blacklist entry removed", "community", community, "channel", channelID, "by", actor)
	return nil
}

// ActiveBlacklist returns all active entries, oldest first.
func (l *SQLiteLedger) ActiveBlacklist() ([]sentinel.BlacklistEntry, error) {
	rows, err := l.db.QueryContext(context.Background(),
		`SELECT community, platform, channel_id, added_by, added_at
		 FROM blacklist ORDER BY added_at, community, channel_id`)
	if err != nil {
		return nil, fmt.Errorf("querying active blacklist: %w", err)
	}
	defer rows.Close()

	var entries []sentinel.BlacklistEntry
	for rows.Next() {
		var e sentinel.BlacklistEntry
		if err := rows.Scan(&e.Community, &e.Platform, &e.ChannelID, &e.AddedBy, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning blacklist row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// BlacklistHistory returns all retired entries, oldest first.
func (l *SQLiteLedger) BlacklistHistory() ([]sentinel.BlacklistRecord, error) {
	rows, err := l.db.QueryContext(context.Background(),
		`SELECT community, platform, channel_id, added_by, added_at, removed_by, removed_at
		 FROM blacklist_history ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying blacklist history: %w", err)
	}
	defer rows.Close()

	var records []sentinel.BlacklistRecord
	for rows.Next() {
		var r sentinel.BlacklistRecord
		if err := rows.Scan(&r.Community, &r.Platform, &r.ChannelID, &r.AddedBy, &r.AddedAt, &r.RemovedBy, &r.RemovedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SubmitBatch persists content items, media references, and pending action
// records in one transaction. Every statement is an idempotent upsert, so
// re-submitting a batch after a partial failure is always safe.
func (l *SQLiteLedger) SubmitBatch(items []sentinel.ContentItem, refs []sentinel.MediaReference) error {
	ctx := context.Background()
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if item.ThingID == "" {
			return fmt.Errorf("%w: thing_id", sentinel.ErrMissingField)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO things (thing_id, author, community, created_at, permalink, body,
			                     parent_id, title, url, flair_class, flair_text)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (thing_id) DO NOTHING`,
			item.ThingID, item.Author, strings.ToLower(item.Community), item.CreatedAt.UTC(),
			item.Permalink, item.Body, item.ParentID, item.Title, item.URL,
			item.FlairClass, item.FlairText)
		if err != nil {
			return fmt.Errorf("inserting thing %s: %w", item.ThingID, wrapConflict(err))
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO action_records (thing_id, removed, action_at)
			 VALUES (?, 0, ?)
			 ON CONFLICT (thing_id) DO NOTHING`,
			item.ThingID, l.clock.Now().UTC())
		if err != nil {
			return fmt.Errorf("inserting action record for %s: %w", item.ThingID, wrapConflict(err))
		}
	}

	for _, ref := range refs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO media_references (thing_id, kind, external_id, media_author, media_url, last_seen)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (thing_id, kind, external_id) DO UPDATE SET last_seen = excluded.last_seen`,
			ref.ThingID, string(ref.Identity.Kind), ref.Identity.ExternalID, ref.Author, ref.URL, ref.LastSeen.UTC())
		if err != nil {
			return fmt.Errorf("upserting media reference for %s: %w", ref.ThingID, wrapConflict(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	l.logger.Debug("batch committed", "items", len(items), "references", len(refs))
	return nil
}

// MarkActioned flips the item's action record to removed. The guard on the
// current value makes re-marking a no-op rather than an update.
func (l *SQLiteLedger) MarkActioned(thingID string) error {
	if thingID == "" {
		return fmt.Errorf("%w: thing_id", sentinel.ErrMissingField)
	}
	_, err := l.db.ExecContext(context.Background(),
		`UPDATE action_records SET removed = 1, action_at = ? WHERE thing_id = ? AND removed = 0`,
		l.clock.Now().UTC(), thingID)
	if err != nil {
		return fmt.Errorf("marking %s actioned: %w", thingID, err)
	}
	return nil
}

// ProcessedThings returns thing ids recorded for the communities, plus
// everything recorded under the global-signal communities.
func (l *SQLiteLedger) ProcessedThings(communities []string) ([]string, error) {
	if len(communities) == 0 && len(l.scope.GlobalSignals) == 0 {
		return nil, nil
	}

	all := make([]string, 0, len(communities)+len(l.scope.GlobalSignals))
	for _, c := range communities {
		all = append(all, strings.ToLower(c))
	}
	all = append(all, l.scope.GlobalSignals...)

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(all)), ",")
	args := make([]any, len(all))
	for i, c := range all {
		args[i] = c
	}

	rows, err := l.db.QueryContext(context.Background(),
		"SELECT DISTINCT thing_id FROM things WHERE community IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying processed things: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning thing id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

var _ sentinel.Ledger = (*SQLiteLedger)(nil)

// wrapConflict tags constraint violations with sentinel.ErrConflict. Under
// correct upsert use these cannot happen; when one does it indicates a schema
// or race bug and must surface, not be swallowed.
func wrapConflict(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
	}
	return err
}
