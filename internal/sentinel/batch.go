package sentinel

import (
	"strings"
	"time"
)

// RawItem is a content item as delivered by the content source: the item
// fields plus media annotations. Multi-reference items carry comma-separated
// author/channel/url/platform values aligned by position, e.g. two references
// arrive as MediaChannels "UC1,UC2" and MediaPlatforms "youtube,youtube".
type RawItem struct {
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

	MediaAuthors   string
	MediaChannels  string
	MediaURLs      string
	MediaPlatforms string
}

func (r RawItem) contentItem() ContentItem {
	return ContentItem{
		ThingID:    r.ThingID,
		Author:     r.Author,
		Community:  r.Community,
		CreatedAt:  r.CreatedAt,
		Permalink:  r.Permalink,
		Body:       r.Body,
		ParentID:   r.ParentID,
		Title:      r.Title,
		URL:        r.URL,
		FlairClass: r.FlairClass,
		FlairText:  r.FlairText,
	}
}

// mediaFields returns the annotation columns split for positional alignment.
func (r RawItem) mediaFields() (authors, channels, urls, platforms []string) {
	return splitAligned(r.MediaAuthors),
		splitAligned(r.MediaChannels),
		splitAligned(r.MediaURLs),
		splitAligned(r.MediaPlatforms)
}

func splitAligned(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// alignedAt reads position i of a split annotation column, treating missing
// trailing positions as empty.
func alignedAt(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}
