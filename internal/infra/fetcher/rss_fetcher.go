package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"
)

// Feed descriptions often carry the duty station and closing date as prose;
// these patterns pull them out so the pipeline can seed location/deadline
// fields from the feed itself.
var (
	rssLocationRe = regexp.MustCompile(`(?i)(?:location|duty station)[:\s]+([A-Z][a-zA-Z ,]{2,60})`)
	rssDeadlineRe = regexp.MustCompile(`(?i)(?:deadline|closing date|apply by)[:\s]+([A-Za-z0-9 ,/.-]{4,40}?\d{4})`)
)

// RSSItem is one parsed feed entry, carrying just the fields the extraction
// pipeline's JSON-LD/meta/DOM stages need as a fallback seed.
type RSSItem struct {
	Title       string
	Link        string
	Description string
	Published   *time.Time
	GUID        string

	// Location and Deadline are regex-extracted from Description when the
	// feed carries them as prose; empty otherwise.
	Location string
	Deadline string
}

// RSSFetcher fetches and parses an RSS/Atom feed through the shared
// HTTPFetcher, so feed reads get the same robots/rate-limit/conditional-GET
// treatment as any other source fetch.
type RSSFetcher struct {
	http *HTTPFetcher
}

func NewRSSFetcher(http *HTTPFetcher) *RSSFetcher {
	return &RSSFetcher{http: http}
}

// FetchFeed retrieves feedURL and returns its items, or nil items with a
// result whose NotModified is set when the server reports 304 Not Modified.
func (f *RSSFetcher) FetchFeed(ctx context.Context, feedURL, etag, lastModified string) ([]RSSItem, *FetchResult, error) {
	result, err := f.http.Get(ctx, feedURL, etag, lastModified)
	if err != nil {
		return nil, nil, err
	}
	if result.NotModified {
		return nil, result, nil
	}

	parser := gofeed.NewParser()
	feed, err := parser.Parse(bytes.NewReader(result.Body))
	if err != nil {
		return nil, result, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]RSSItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := RSSItem{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			GUID:        it.GUID,
		}
		if it.PublishedParsed != nil {
			item.Published = it.PublishedParsed
		}
		if m := rssLocationRe.FindStringSubmatch(it.Description); m != nil {
			item.Location = m[1]
		}
		if m := rssDeadlineRe.FindStringSubmatch(it.Description); m != nil {
			item.Deadline = m[1]
		}
		items = append(items, item)
	}
	return items, result, nil
}
