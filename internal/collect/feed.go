package collect

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

const channelFeedURL = "https://www.youtube.com/feeds/videos.xml"

// FeedEntry is one upload from a channel's public Atom feed.
type FeedEntry struct {
	VideoID   string
	Title     string
	URL       string
	Published time.Time
	Views     int64
}

// FeedReader reads the public uploads feed of a channel. The feed needs no
// API key but only carries the most recent uploads.
type FeedReader struct {
	feedURL string
	parser  *gofeed.Parser
}

// ChannelFeedURL returns the uploads feed URL for a channel id.
func ChannelFeedURL(channelID string) string {
	return channelFeedURL + "?" + url.Values{"channel_id": {channelID}}.Encode()
}

// NewFeedReader creates a FeedReader for the given feed URL.
func NewFeedReader(feedURL string) *FeedReader {
	return &FeedReader{feedURL: feedURL, parser: gofeed.NewParser()}
}

// Recent returns up to limit entries, newest first as published by the feed.
// A limit of zero returns every entry.
func (fr *FeedReader) Recent(ctx context.Context, limit int) ([]FeedEntry, error) {
	feed, err := fr.parser.ParseURLWithContext(fr.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", fr.feedURL, err)
	}

	var entries []FeedEntry
	for _, item := range feed.Items {
		if limit > 0 && len(entries) >= limit {
			break
		}
		if entry := parseItem(item); entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func parseItem(item *gofeed.Item) *FeedEntry {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	entry := &FeedEntry{
		Title:   title,
		URL:     item.Link,
		VideoID: extensionValue(item.Extensions, "yt", "videoId"),
	}
	if entry.VideoID == "" {
		entry.VideoID = videoIDFromLink(item.Link)
	}
	if entry.VideoID == "" {
		return nil
	}

	if item.PublishedParsed != nil {
		entry.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.Published = *item.UpdatedParsed
	}

	entry.Views = mediaViews(item.Extensions)
	return entry
}

func extensionValue(exts ext.Extensions, prefix, name string) string {
	if exts == nil {
		return ""
	}
	values := exts[prefix][name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}

// mediaViews digs media:group/media:community/media:statistics@views out of
// the entry extensions.
func mediaViews(exts ext.Extensions) int64 {
	if exts == nil {
		return 0
	}
	groups := exts["media"]["group"]
	if len(groups) == 0 {
		return 0
	}
	community := groups[0].Children["community"]
	if len(community) == 0 {
		return 0
	}
	stats := community[0].Children["statistics"]
	if len(stats) == 0 {
		return 0
	}
	views, err := strconv.ParseInt(stats[0].Attrs["views"], 10, 64)
	if err != nil {
		return 0
	}
	return views
}

func videoIDFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}
