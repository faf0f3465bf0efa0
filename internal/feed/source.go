package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

// Entry is the newest item of the feed.
type Entry struct {
	Title     string
	Link      string
	Content   string
	Published time.Time
}

// Source returns the newest entry of a feed.
type Source interface {
	Latest(ctx context.Context) (Entry, error)
}

// GofeedSource reads RSS, Atom or JSON feeds over HTTP.
type GofeedSource struct {
	url    string
	parser *gofeed.Parser
}

func NewGofeedSource(url string, timeout time.Duration) *GofeedSource {
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: timeout}
	return &GofeedSource{url: url, parser: p}
}

func (s *GofeedSource) Latest(ctx context.Context) (Entry, error) {
	f, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("fetch feed: %w", err)
	}
	return latestEntry(f)
}

func latestEntry(f *gofeed.Feed) (Entry, error) {
	if f == nil || len(f.Items) == 0 {
		return Entry{}, domain.ErrFeedEmpty
	}
	item := f.Items[0]

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published == nil {
		return Entry{}, errors.New("newest feed item has no publish date")
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}
	return Entry{
		Title:     item.Title,
		Link:      item.Link,
		Content:   content,
		Published: published.UTC(),
	}, nil
}
