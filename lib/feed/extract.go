// Package feed parses the restricted Atom dialect that publishers push:
// entry blocks carrying a video id, title, publication time and optional
// media metadata.
package feed

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Entry struct {
	VideoID     string
	Title       string
	Description string
	ThumbURL    string
	PublishedAt *int64 // epoch seconds; nil when the feed omits or mangles it
}

type Feed struct {
	Topic     string // the feed's rel=self link
	ChannelID string // external publisher id
	Title     string
	ImageURL  string
	Entries   []Entry
}

// Extract parses a raw update payload. Extraction is best-effort per entry:
// a missing or malformed timestamp yields a nil PublishedAt, and an entry
// without a video id is dropped silently since it cannot be stored.
func Extract(body []byte) (*Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := &Feed{
		Topic:     parsed.FeedLink,
		ChannelID: extValue(parsed.Extensions, "yt", "channelId"),
		Title:     parsed.Title,
	}
	if parsed.Image != nil {
		out.ImageURL = parsed.Image.URL
	}

	for _, item := range parsed.Items {
		videoID := extValue(item.Extensions, "yt", "videoId")
		if videoID == "" {
			videoID = guidVideoID(item.GUID)
		}
		if videoID == "" {
			continue
		}

		entry := Entry{
			VideoID:     videoID,
			Title:       item.Title,
			Description: item.Description,
		}
		if item.PublishedParsed != nil {
			ts := item.PublishedParsed.UTC().Unix()
			entry.PublishedAt = &ts
		}
		if group := firstExt(item.Extensions, "media", "group"); group != nil {
			if desc := firstChild(group, "description"); desc != nil {
				entry.Description = desc.Value
			}
			if thumb := firstChild(group, "thumbnail"); thumb != nil {
				entry.ThumbURL = thumb.Attrs["url"]
			}
		}

		out.Entries = append(out.Entries, entry)
	}

	return out, nil
}

var ytimgThumb = regexp.MustCompile(`/vi(?:_webp)?/([a-zA-Z0-9_-]{11})/`)

// ThumbVideoID pulls the 11-character video id out of a ytimg thumbnail URL,
// or returns "" when the URL has some other shape.
func ThumbVideoID(thumbURL string) string {
	m := ytimgThumb.FindStringSubmatch(thumbURL)
	if m == nil {
		return ""
	}
	return m[1]
}

func guidVideoID(guid string) string {
	const prefix = "yt:video:"
	if strings.HasPrefix(guid, prefix) {
		return strings.TrimPrefix(guid, prefix)
	}
	return ""
}

func extValue(exts ext.Extensions, space, name string) string {
	if e := firstExt(exts, space, name); e != nil {
		return strings.TrimSpace(e.Value)
	}
	return ""
}

func firstExt(exts ext.Extensions, space, name string) *ext.Extension {
	if list := exts[space][name]; len(list) > 0 {
		return &list[0]
	}
	return nil
}

func firstChild(e *ext.Extension, name string) *ext.Extension {
	if list := e.Children[name]; len(list) > 0 {
		return &list[0]
	}
	return nil
}
