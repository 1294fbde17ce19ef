package sentinel_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Thirdegree/TheSentinel/internal/sentinel"
	"github.com/Thirdegree/TheSentinel/internal/testutil"
	"github.com/Thirdegree/TheSentinel/internal/vault"
)

const (
	kindVideo   sentinel.ResourceKind = "youtube/video"
	kindChannel sentinel.ResourceKind = "youtube/channel"
)

// fakeMedia implements sentinel.MediaResolver with canned URL matches and
// channel derivations.
type fakeMedia struct {
	urls       map[string]sentinel.ResourceIdentity
	channels   map[sentinel.ResourceIdentity]sentinel.ResourceIdentity
	channelErr map[sentinel.ResourceIdentity]error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		urls:       make(map[string]sentinel.ResourceIdentity),
		channels:   make(map[sentinel.ResourceIdentity]sentinel.ResourceIdentity),
		channelErr: make(map[sentinel.ResourceIdentity]error),
	}
}

func (m *fakeMedia) Identify(url string) (sentinel.ResourceIdentity, bool) {
	id, ok := m.urls[url]
	return id, ok
}

func (m *fakeMedia) ChannelFor(_ context.Context, id sentinel.ResourceIdentity) (sentinel.ResourceIdentity, error) {
	if id.Kind.IsChannel() {
		return id, nil
	}
	if err, ok := m.channelErr[id]; ok {
		return sentinel.ResourceIdentity{}, err
	}
	ch, ok := m.channels[id]
	if !ok {
		return sentinel.ResourceIdentity{}, sentinel.ErrNotFound
	}
	return ch, nil
}

func (m *fakeMedia) ChannelKind(platform string) (sentinel.ResourceKind, bool) {
	if platform == "youtube" {
		return kindChannel, true
	}
	return "", false
}

func newTestService(t *testing.T, media sentinel.MediaResolver, v sentinel.Vault) (*sentinel.Service, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	scope := sentinel.CommunityScope{
		Public:        "videos",
		GlobalSignals: []string{"yt_killer", "thesentinelbot"},
	}
	ledger := testutil.NewTestLedger(t, scope, clock)
	svc := sentinel.NewService(ledger, media, v, sentinel.NewNopLogger(), clock, testutil.NewStubIDGenerator())
	return svc, clock
}

func videoIdentity(id string) sentinel.ResourceIdentity {
	return sentinel.ResourceIdentity{Kind: kindVideo, ExternalID: id}
}

func channelIdentity(id string) sentinel.ResourceIdentity {
	return sentinel.ResourceIdentity{Kind: kindChannel, ExternalID: id}
}

func TestProcessBatchChannelAnnotations(t *testing.T) {
	t.Parallel()
	media := newFakeMedia()
	svc, _ := newTestService(t, media, nil)

	raw := []sentinel.RawItem{{
		ThingID:        "t3_one",
		Author:         "poster",
		Community:      "catvideos",
		MediaAuthors:   "uploader1,uploader2",
		MediaChannels:  "UC1,UC2",
		MediaPlatforms: "youtube,youtube",
	}}

	decisions, err := svc.ProcessBatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("decisions = %d, want 2", len(decisions))
	}

	for i, wantChannel := range []string{"UC1", "UC2"} {
		d := decisions[i]
		if d.Reference.Identity != channelIdentity(wantChannel) {
			t.Errorf("decision %d identity = %v, want %v", i, d.Reference.Identity, channelIdentity(wantChannel))
		}
		if d.Blacklisted {
			t.Errorf("decision %d should be clear", i)
		}
	}
	if decisions[0].Reference.Author != "uploader1" {
		t.Errorf("author = %q, want aligned %q", decisions[0].Reference.Author, "uploader1")
	}
	if decisions[1].Reference.Author != "uploader2" {
		t.Errorf("author = %q, want aligned %q", decisions[1].Reference.Author, "uploader2")
	}
}

func TestProcessBatchURLDerivesChannel(t *testing.T) {
	t.Parallel()
	media := newFakeMedia()
	media.urls["https://youtu.be/v1"] = videoIdentity("v1")
	media.channels[videoIdentity("v1")] = channelIdentity("UCowner")
	svc, _ := newTestService(t, media, nil)

	if err := svc.Blacklist("catvideos", "youtube", "UCowner", "mod1"); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}

	raw := []sentinel.RawItem{{
		ThingID:      "t3_one",
		Community:    "catvideos",
		MediaAuthors: "uploader",
		MediaURLs:    "https://youtu.be/v1",
	}}

	decisions, err := svc.ProcessBatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions))
	}
	if decisions[0].Reference.Identity != channelIdentity("UCowner") {
		t.Errorf("identity = %v, want the owning channel", decisions[0].Reference.Identity)
	}
	if !decisions[0].Blacklisted {
		t.Error("expected the banned channel's video to be flagged")
	}
}

func TestProcessBatchChannelFailureKeepsVideoIdentity(t *testing.T) {
	t.Parallel()
	media := newFakeMedia()
	media.urls["https://youtu.be/v1"] = videoIdentity("v1")
	media.channelErr[videoIdentity("v1")] = sentinel.ErrRemoteUnavailable
	svc, _ := newTestService(t, media, nil)

	raw := []sentinel.RawItem{{
		ThingID:   "t3_one",
		Community: "catvideos",
		MediaURLs: "https://youtu.be/v1",
	}}

	decisions, err := svc.ProcessBatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions))
	}
	// The reference degrades to the matched identity; a later re-submission
	// can upgrade it once the remote recovers.
	if decisions[0].Reference.Identity != videoIdentity("v1") {
		t.Errorf("identity = %v, want the directly matched video", decisions[0].Reference.Identity)
	}
	// With no channel and no author there is nothing to ban on.
	if decisions[0].Blacklisted {
		t.Error("degraded reference should not be blacklisted")
	}
}

func TestProcessBatchSkipsUnmatchedURLs(t *testing.T) {
	t.Parallel()
	media := newFakeMedia()
	svc, _ := newTestService(t, media, nil)

	raw := []sentinel.RawItem{{
		ThingID:   "t3_one",
		Community: "catvideos",
		MediaURLs: "https://example.com/not-media",
	}}

	decisions, err := svc.ProcessBatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(decisions) != 0 {
		t.Fatalf("decisions = %d, want 0", len(decisions))
	}

	// The item itself is still recorded as processed.
	ids, err := svc.ProcessedThings([]string{"catvideos"})
	if err != nil {
		t.Fatalf("ProcessedThings: %v", err)
	}
	if len(ids) != 1 || ids[0] != "t3_one" {
		t.Errorf("processed things = %v, want [t3_one]", ids)
	}
}

func TestProcessBatchUnknownPlatformFallback(t *testing.T) {
	t.Parallel()
	media := newFakeMedia()
	svc, _ := newTestService(t, media, nil)

	raw := []sentinel.RawItem{{
		ThingID:        "t3_one",
		Community:      "catvideos",
		MediaChannels:  "CH1",
		MediaPlatforms: "vimeo",
	}}

	decisions, err := svc.ProcessBatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions))
	}
	want := sentinel.ResourceIdentity{Kind: "vimeo/channel", ExternalID: "CH1"}
	if decisions[0].Reference.Identity != want {
		t.Errorf("identity = %v, want fallback %v", decisions[0].Reference.Identity, want)
	}
}

func TestResolveChannel(t *testing.T) {
	t.Parallel()
	media := newFakeMedia()
	media.urls["https://youtu.be/v1"] = videoIdentity("v1")
	media.channels[videoIdentity("v1")] = channelIdentity("UCowner")
	media.urls["https://youtu.be/gone"] = videoIdentity("gone")
	svc, _ := newTestService(t, media, nil)

	t.Run("resolves identity and channel", func(t *testing.T) {
		id, ch, err := svc.ResolveChannel(context.Background(), "https://youtu.be/v1")
		if err != nil {
			t.Fatalf("ResolveChannel: %v", err)
		}
		if id != videoIdentity("v1") {
			t.Errorf("identity = %v, want %v", id, videoIdentity("v1"))
		}
		if ch != channelIdentity("UCowner") {
			t.Errorf("channel = %v, want %v", ch, channelIdentity("UCowner"))
		}
	})

	t.Run("missing remote yields zero channel", func(t *testing.T) {
		id, ch, err := svc.ResolveChannel(context.Background(), "https://youtu.be/gone")
		if err != nil {
			t.Fatalf("ResolveChannel: %v", err)
		}
		if id != videoIdentity("gone") {
			t.Errorf("identity = %v, want %v", id, videoIdentity("gone"))
		}
		if !ch.IsZero() {
			t.Errorf("channel = %v, want zero", ch)
		}
	})

	t.Run("unmatched url", func(t *testing.T) {
		_, _, err := svc.ResolveChannel(context.Background(), "https://example.com/nope")
		if !errors.Is(err, sentinel.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestBlacklistRoundTrip(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, newFakeMedia(), nil)

	if err := svc.Blacklist("catvideos", "youtube", "UC123", "mod1"); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}
	banned, err := svc.IsBlacklisted("catvideos", sentinel.BlacklistQuery{ChannelID: "UC123"})
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if !banned {
		t.Error("expected the channel to be banned")
	}

	if err := svc.Unblacklist("catvideos", "youtube", "UC123", "mod2"); err != nil {
		t.Fatalf("Unblacklist: %v", err)
	}
	banned, err = svc.IsBlacklisted("catvideos", sentinel.BlacklistQuery{ChannelID: "UC123"})
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if banned {
		t.Error("expected the channel to be clear")
	}
}

func TestExportAudit(t *testing.T) {
	t.Parallel()
	v := vault.NewMemoryVault("test")
	svc, _ := newTestService(t, newFakeMedia(), v)

	if err := svc.Blacklist("catvideos", "youtube", "UC123", "mod1"); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}

	version, err := svc.ExportAudit()
	if err != nil {
		t.Fatalf("ExportAudit: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}

	var sb strings.Builder
	if err := v.GetArchive(sentinel.AuditArchiveName, &sb); err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if !strings.Contains(sb.String(), "UC123") {
		t.Errorf("archive does not mention the banned channel: %s", sb.String())
	}

	// A second export bumps the version.
	version, err = svc.ExportAudit()
	if err != nil {
		t.Fatalf("second ExportAudit: %v", err)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
}

func TestExportAuditWithoutVault(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, newFakeMedia(), nil)

	if _, err := svc.ExportAudit(); err == nil {
		t.Fatal("expected an error without a configured vault")
	}
}
