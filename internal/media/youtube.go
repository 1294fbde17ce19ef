package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// Resource kinds for the YouTube platform.
const (
	KindYouTubeVideo   sentinel.ResourceKind = "youtube/video"
	KindYouTubeChannel sentinel.ResourceKind = "youtube/channel"
)

const (
	youtubePlatform           = "youtube"
	defaultYouTubeAPIBase     = "https://www.googleapis.com/youtube/v3"
	defaultYouTubeHTTPTimeout = 15 * time.Second
)

// The id capture stops at URL special characters so query separators and
// anchors trailing the id never leak into it.
var (
	youtubeVideoPattern   = regexp.MustCompile(`(?:youtu\.be/|watch\?v=|/embed/)(?P<id>.*?)(?:[$&+,/:;=?@]|$)`)
	youtubeChannelPattern = regexp.MustCompile(`youtube\.com/channel/(?P<id>.*?)(?:[$&+,/:;=?@]|$)`)
)

// YouTubeOptions configures the YouTube resolvers.
type YouTubeOptions struct {
	APIKey  string
	APIBase string       // defaults to the Data API v3 base
	Client  *http.Client // defaults to a client with a request timeout
}

// NewYouTubeRegistry builds a matcher registry with the YouTube video and
// channel kinds registered.
func NewYouTubeRegistry(opts YouTubeOptions) (*Registry, error) {
	base := opts.APIBase
	if base == "" {
		base = defaultYouTubeAPIBase
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultYouTubeHTTPTimeout}
	}
	auth := url.Values{}
	if opts.APIKey != "" {
		auth.Set("key", opts.APIKey)
	}

	reg := NewRegistry()
	video := &youtubeVideoResolver{rest: restClient{apiBase: base, endpointBase: "videos", auth: auth, client: client}}
	channel := &youtubeChannelResolver{rest: restClient{apiBase: base, endpointBase: "channels", auth: auth, client: client}}
	if err := reg.Register(KindYouTubeVideo, youtubeVideoPattern, video); err != nil {
		return nil, err
	}
	if err := reg.Register(KindYouTubeChannel, youtubeChannelPattern, channel); err != nil {
		return nil, err
	}
	reg.RegisterChannelKind(youtubePlatform, KindYouTubeChannel)
	return reg, nil
}

// listPayload is the envelope the Data API wraps every list response in.
type listPayload struct {
	Items []Metadata `json:"items"`
}

type youtubeVideoResolver struct {
	rest restClient
}

func (r *youtubeVideoResolver) Fetch(ctx context.Context, externalID string) (Metadata, error) {
	var payload listPayload
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", externalID)
	if err := r.rest.getJSON(ctx, "", q, &payload); err != nil {
		return nil, err
	}
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("%w: video %q", sentinel.ErrNotFound, externalID)
	}
	return payload.Items[0], nil
}

// Relations derives the owning channel from snippet.channelId.
func (r *youtubeVideoResolver) Relations(meta Metadata) (map[string]sentinel.ResourceIdentity, error) {
	snippet, ok := meta["snippet"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: video payload has no snippet", sentinel.ErrRemoteUnavailable)
	}
	channelID, _ := snippet["channelId"].(string)
	if channelID == "" {
		return map[string]sentinel.ResourceIdentity{}, nil
	}
	return map[string]sentinel.ResourceIdentity{
		RelationChannel: {Kind: KindYouTubeChannel, ExternalID: channelID},
	}, nil
}

type youtubeChannelResolver struct {
	rest restClient
}

func (r *youtubeChannelResolver) Fetch(ctx context.Context, externalID string) (Metadata, error) {
	var payload listPayload
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", externalID)
	if err := r.rest.getJSON(ctx, "", q, &payload); err != nil {
		return nil, err
	}
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("%w: channel %q", sentinel.ErrNotFound, externalID)
	}
	return payload.Items[0], nil
}

// Channels are the root of the derivation chain and link to nothing further.
func (r *youtubeChannelResolver) Relations(Metadata) (map[string]sentinel.ResourceIdentity, error) {
	return map[string]sentinel.ResourceIdentity{}, nil
}
