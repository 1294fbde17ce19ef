package database_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Thirdegree/TheSentinel/internal/database"
	"github.com/Thirdegree/TheSentinel/internal/sentinel"
	"github.com/Thirdegree/TheSentinel/internal/testutil"
)

func testScope() sentinel.CommunityScope {
	return sentinel.CommunityScope{
		Public:        "videos",
		GlobalSignals: []string{"yt_killer", "thesentinelbot"},
	}
}

func newTestLedger(t *testing.T) (*database.SQLiteLedger, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	return testutil.NewTestLedger(t, testScope(), clock), clock
}

func entry(community, channelID, actor string) sentinel.BlacklistEntry {
	return sentinel.BlacklistEntry{
		Community: community,
		Platform:  "youtube",
		ChannelID: channelID,
		AddedBy:   actor,
	}
}

func channelQuery(channelID string) sentinel.BlacklistQuery {
	return sentinel.BlacklistQuery{ChannelID: channelID}
}

func TestBlacklistLifecycle(t *testing.T) {
	t.Parallel()
	ledger, clock := newTestLedger(t)

	if err := ledger.AddBlacklist(entry("catvideos", "UC123", "mod1")); err != nil {
		t.Fatalf("AddBlacklist: %v", err)
	}

	banned, err := ledger.IsBlacklisted("catvideos", channelQuery("UC123"))
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if !banned {
		t.Error("expected the channel to be blacklisted")
	}

	// Community matching ignores case.
	banned, err = ledger.IsBlacklisted("CatVideos", channelQuery("UC123"))
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if !banned {
		t.Error("expected a case-insensitive community match")
	}

	clock.Advance(time.Hour)
	if err := ledger.RemoveBlacklist("catvideos", "youtube", "UC123", "mod2"); err != nil {
		t.Fatalf("RemoveBlacklist: %v", err)
	}

	banned, err = ledger.IsBlacklisted("catvideos", channelQuery("UC123"))
	if err != nil {
		t.Fatalf("IsBlacklisted after removal: %v", err)
	}
	if banned {
		t.Error("expected the channel to be clear after removal")
	}

	active, err := ledger.ActiveBlacklist()
	if err != nil {
		t.Fatalf("ActiveBlacklist: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active entries = %d, want 0", len(active))
	}

	history, err := ledger.BlacklistHistory()
	if err != nil {
		t.Fatalf("BlacklistHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
	rec := history[0]
	if rec.AddedBy != "mod1" {
		t.Errorf("added_by = %q, want %q", rec.AddedBy, "mod1")
	}
	if rec.RemovedBy != "mod2" {
		t.Errorf("removed_by = %q, want %q", rec.RemovedBy, "mod2")
	}
	if rec.ChannelID != "UC123" {
		t.Errorf("channel = %q, want %q", rec.ChannelID, "UC123")
	}
	if !rec.RemovedAt.After(rec.AddedAt) {
		t.Errorf("removed_at %v should be after added_at %v", rec.RemovedAt, rec.AddedAt)
	}
}

func TestAddBlacklistIdempotent(t *testing.T) {
	t.Parallel()
	ledger, clock := newTestLedger(t)

	if err := ledger.AddBlacklist(entry("catvideos", "UC123", "mod1")); err != nil {
		t.Fatalf("first AddBlacklist: %v", err)
	}
	firstAdded := clock.Now().UTC()

	clock.Advance(time.Hour)
	if err := ledger.AddBlacklist(entry("catvideos", "UC123", "mod2")); err != nil {
		t.Fatalf("second AddBlacklist: %v", err)
	}

	active, err := ledger.ActiveBlacklist()
	if err != nil {
		t.Fatalf("ActiveBlacklist: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active entries = %d, want 1", len(active))
	}
	// The original entry wins; the duplicate add changes nothing.
	if active[0].AddedBy != "mod1" {
		t.Errorf("added_by = %q, want %q", active[0].AddedBy, "mod1")
	}
	if !active[0].AddedAt.Equal(firstAdded) {
		t.Errorf("added_at = %v, want %v", active[0].AddedAt, firstAdded)
	}
}

func TestAddBlacklistValidation(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	t.Run("missing channel id", func(t *testing.T) {
		err := ledger.AddBlacklist(sentinel.BlacklistEntry{Community: "c", Platform: "youtube", AddedBy: "mod"})
		if !errors.Is(err, sentinel.ErrMissingReference) {
			t.Fatalf("err = %v, want ErrMissingReference", err)
		}
	})

	t.Run("missing community", func(t *testing.T) {
		err := ledger.AddBlacklist(sentinel.BlacklistEntry{Platform: "youtube", ChannelID: "UC1", AddedBy: "mod"})
		if !errors.Is(err, sentinel.ErrMissingField) {
			t.Fatalf("err = %v, want ErrMissingField", err)
		}
	})

	t.Run("missing actor", func(t *testing.T) {
		err := ledger.AddBlacklist(sentinel.BlacklistEntry{Community: "c", Platform: "youtube", ChannelID: "UC1"})
		if !errors.Is(err, sentinel.ErrMissingField) {
			t.Fatalf("err = %v, want ErrMissingField", err)
		}
	})
}

func TestIsBlacklistedValidation(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	_, err := ledger.IsBlacklisted("catvideos", sentinel.BlacklistQuery{})
	if !errors.Is(err, sentinel.ErrMissingReference) {
		t.Fatalf("err = %v, want ErrMissingReference", err)
	}
}

func TestIsBlacklistedAuthorOnly(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	if err := ledger.AddBlacklist(entry("catvideos", "UC123", "mod1")); err != nil {
		t.Fatalf("AddBlacklist: %v", err)
	}

	// An author reference alone is never authoritative.
	banned, err := ledger.IsBlacklisted("catvideos", sentinel.BlacklistQuery{Author: "someone"})
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if banned {
		t.Error("author-only query must not report a ban")
	}
}

func TestPublicCommunityIsReadOnly(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	// Even a direct entry under the public community never answers true.
	if err := ledger.AddBlacklist(entry("videos", "UC123", "mod1")); err != nil {
		t.Fatalf("AddBlacklist: %v", err)
	}

	for _, community := range []string{"videos", "Videos", "VIDEOS"} {
		banned, err := ledger.IsBlacklisted(community, channelQuery("UC123"))
		if err != nil {
			t.Fatalf("IsBlacklisted(%q): %v", community, err)
		}
		if banned {
			t.Errorf("public community %q must always answer false", community)
		}
	}
}

func TestGlobalSignalCommunities(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	if err := ledger.AddBlacklist(entry("yt_killer", "UCbad", "mod1")); err != nil {
		t.Fatalf("AddBlacklist: %v", err)
	}

	// A global-signal entry bans the channel everywhere.
	banned, err := ledger.IsBlacklisted("someothersub", channelQuery("UCbad"))
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if !banned {
		t.Error("expected the global-signal entry to apply to other communities")
	}

	t.Run("platform filter", func(t *testing.T) {
		banned, err := ledger.IsBlacklisted("someothersub", sentinel.BlacklistQuery{ChannelID: "UCbad", Platform: "youtube"})
		if err != nil {
			t.Fatalf("IsBlacklisted: %v", err)
		}
		if !banned {
			t.Error("expected a match on the entry's platform")
		}

		banned, err = ledger.IsBlacklisted("someothersub", sentinel.BlacklistQuery{ChannelID: "UCbad", Platform: "vimeo"})
		if err != nil {
			t.Fatalf("IsBlacklisted: %v", err)
		}
		if banned {
			t.Error("expected no match on a different platform")
		}
	})
}

func TestGlobalSignalsNormalizedOnACopy(t *testing.T) {
	t.Parallel()
	scope := sentinel.CommunityScope{
		Public:        "videos",
		GlobalSignals: []string{"YT_Killer", "TheSentinelBot"},
	}
	ledger := testutil.NewTestLedger(t, scope, testutil.FixedClock())

	// The configured slice keeps its original casing.
	if scope.GlobalSignals[0] != "YT_Killer" || scope.GlobalSignals[1] != "TheSentinelBot" {
		t.Errorf("caller's slice mutated: %v", scope.GlobalSignals)
	}

	// The ledger still matches the lowercased form it stores.
	if err := ledger.AddBlacklist(entry("yt_killer", "UCbad", "mod1")); err != nil {
		t.Fatalf("AddBlacklist: %v", err)
	}
	banned, err := ledger.IsBlacklisted("someothersub", channelQuery("UCbad"))
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if !banned {
		t.Error("expected the global-signal entry to apply")
	}
}

func TestRemoveBlacklistAbsentEntry(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	if err := ledger.RemoveBlacklist("catvideos", "youtube", "UCnothere", "mod1"); err != nil {
		t.Fatalf("RemoveBlacklist: %v", err)
	}

	history, err := ledger.BlacklistHistory()
	if err != nil {
		t.Fatalf("BlacklistHistory: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history entries = %d, want 0", len(history))
	}
}

func TestRemoveBlacklistValidation(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	if err := ledger.RemoveBlacklist("catvideos", "youtube", "", "mod1"); !errors.Is(err, sentinel.ErrMissingReference) {
		t.Errorf("err = %v, want ErrMissingReference", err)
	}
	if err := ledger.RemoveBlacklist("catvideos", "youtube", "UC123", ""); !errors.Is(err, sentinel.ErrMissingField) {
		t.Errorf("err = %v, want ErrMissingField", err)
	}
}

func testBatch(clock sentinel.Clock) ([]sentinel.ContentItem, []sentinel.MediaReference) {
	items := []sentinel.ContentItem{
		{
			ThingID:   "t3_abc",
			Author:    "poster",
			Community: "catvideos",
			CreatedAt: clock.Now(),
			Permalink: "/r/catvideos/t3_abc",
			Title:     "look at this",
			URL:       "https://youtu.be/vid1",
		},
	}
	refs := []sentinel.MediaReference{
		{
			ThingID:  "t3_abc",
			Identity: sentinel.ResourceIdentity{Kind: "youtube/channel", ExternalID: "UCowner"},
			Author:   "uploader",
			URL:      "https://youtu.be/vid1",
			LastSeen: clock.Now(),
		},
	}
	return items, refs
}

func TestSubmitBatchIdempotent(t *testing.T) {
	t.Parallel()
	ledger, clock := newTestLedger(t)

	items, refs := testBatch(clock)
	if err := ledger.SubmitBatch(items, refs); err != nil {
		t.Fatalf("first SubmitBatch: %v", err)
	}

	clock.Advance(time.Hour)
	items2, refs2 := testBatch(clock)
	if err := ledger.SubmitBatch(items2, refs2); err != nil {
		t.Fatalf("second SubmitBatch: %v", err)
	}

	ids, err := ledger.ProcessedThings([]string{"catvideos"})
	if err != nil {
		t.Fatalf("ProcessedThings: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("processed things = %v, want exactly one", ids)
	}

	// Re-submission refreshes last_seen on the reference.
	var lastSeen time.Time
	err = ledger.DB().QueryRow(
		`SELECT last_seen FROM media_references WHERE thing_id = ? AND external_id = ?`,
		"t3_abc", "UCowner").Scan(&lastSeen)
	if err != nil {
		t.Fatalf("reading last_seen: %v", err)
	}
	if !lastSeen.Equal(clock.Now().UTC()) {
		t.Errorf("last_seen = %v, want %v", lastSeen, clock.Now().UTC())
	}
}

func TestSubmitBatchValidation(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	err := ledger.SubmitBatch([]sentinel.ContentItem{{Author: "poster"}}, nil)
	if !errors.Is(err, sentinel.ErrMissingField) {
		t.Fatalf("err = %v, want ErrMissingField", err)
	}
}

func TestMarkActioned(t *testing.T) {
	t.Parallel()
	ledger, clock := newTestLedger(t)

	items, refs := testBatch(clock)
	if err := ledger.SubmitBatch(items, refs); err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	clock.Advance(time.Minute)
	if err := ledger.MarkActioned("t3_abc"); err != nil {
		t.Fatalf("MarkActioned: %v", err)
	}
	actionedAt := clock.Now().UTC()

	var removed bool
	var at time.Time
	err := ledger.DB().QueryRow(`SELECT removed, action_at FROM action_records WHERE thing_id = ?`, "t3_abc").
		Scan(&removed, &at)
	if err != nil {
		t.Fatalf("reading action record: %v", err)
	}
	if !removed {
		t.Error("expected the action record to be marked removed")
	}
	if !at.Equal(actionedAt) {
		t.Errorf("action_at = %v, want %v", at, actionedAt)
	}

	// Re-marking is a no-op and keeps the original timestamp.
	clock.Advance(time.Hour)
	if err := ledger.MarkActioned("t3_abc"); err != nil {
		t.Fatalf("second MarkActioned: %v", err)
	}
	err = ledger.DB().QueryRow(`SELECT action_at FROM action_records WHERE thing_id = ?`, "t3_abc").Scan(&at)
	if err != nil {
		t.Fatalf("re-reading action record: %v", err)
	}
	if !at.Equal(actionedAt) {
		t.Errorf("action_at after re-mark = %v, want unchanged %v", at, actionedAt)
	}
}

func TestProcessedThings(t *testing.T) {
	t.Parallel()
	ledger, clock := newTestLedger(t)

	items := []sentinel.ContentItem{
		{ThingID: "t3_one", Community: "catvideos", CreatedAt: clock.Now()},
		{ThingID: "t3_two", Community: "dogvideos", CreatedAt: clock.Now()},
		{ThingID: "t3_global", Community: "yt_killer", CreatedAt: clock.Now()},
	}
	if err := ledger.SubmitBatch(items, nil); err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	ids, err := ledger.ProcessedThings([]string{"CatVideos"})
	if err != nil {
		t.Fatalf("ProcessedThings: %v", err)
	}

	got := make(map[string]bool, len(ids))
	for _, id := range ids {
		got[id] = true
	}
	if !got["t3_one"] {
		t.Error("expected the community's own thing")
	}
	if !got["t3_global"] {
		t.Error("expected the global-signal thing")
	}
	if got["t3_two"] {
		t.Error("did not expect a thing from an unrelated community")
	}
}
