package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/intelbrief/internal/model"
)

// RSS fetches an RSS or Atom feed. News outlets and sanctions notice feeds
// both use it; the tier comes from configuration.
type RSS struct {
	name     string
	url      string
	tier     model.Tier
	language string
	client   *client
}

// NewRSS creates an RSS source. An empty language falls back to the feed's
// declared language, then to "en".
func NewRSS(name, url string, tier model.Tier, language string, c *client) *RSS {
	return &RSS{name: name, url: url, tier: tier, language: language, client: c}
}

// Name returns the configured source name.
func (s *RSS) Name() string {
	return s.name
}

// Fetch retrieves and converts the feed's entries.
func (s *RSS) Fetch(ctx context.Context) ([]model.RawItem, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	body, err := s.client.get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.name, err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.name, err)
	}

	lang := s.language
	if lang == "" {
		lang = normalizeLanguage(feed.Language)
	}

	now := time.Now().UTC()
	items := make([]model.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		items = append(items, s.convert(entry, lang, now))
	}
	return items, nil
}

// convert turns a feed entry into a raw item.
func (s *RSS) convert(entry *gofeed.Item, lang string, now time.Time) model.RawItem {
	var published time.Time
	if entry.PublishedParsed != nil {
		published = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		published = entry.UpdatedParsed.UTC()
	}

	content := entry.Content
	if strings.TrimSpace(content) == "" {
		content = entry.Description
	}

	title := CleanHTML(entry.Title)
	if title == "" {
		title = "Untitled"
	}

	meta := map[string]any{"feed_url": s.url}
	if entry.GUID != "" {
		meta["entry_id"] = entry.GUID
	}
	if len(entry.Categories) > 0 {
		meta["tags"] = entry.Categories
	}

	return model.RawItem{
		ID:         generateID(entry),
		URL:        entry.Link,
		Title:      title,
		Content:    CleanHTML(content),
		SourceName: s.name,
		Tier:       s.tier,
		Language:   lang,
		Published:  published,
		Retrieved:  now,
		Metadata:   meta,
	}
}

// generateID creates a deterministic ID for a feed item.
// Uses the GUID if available, otherwise hashes the URL.
func generateID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return hashString(entry.GUID)
	}
	if entry.Link != "" {
		return hashString(entry.Link)
	}
	// Last resort: hash title + published time
	key := entry.Title
	if entry.PublishedParsed != nil {
		key += entry.PublishedParsed.String()
	}
	return hashString(key)
}

// CleanHTML reduces an HTML fragment to its text with whitespace collapsed.
func CleanHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpace(s)
	}
	doc.Find("script, style").Remove()
	// Block elements would otherwise run their text together.
	doc.Find("br, p, div, li, h1, h2, h3, h4, h5, h6, tr, td").AppendHtml(" ")
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeLanguage maps "en-US" style tags to a lower-case primary subtag.
func normalizeLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if tag == "" {
		return "en"
	}
	return tag
}
