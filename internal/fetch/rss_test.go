package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/intelbrief/internal/config"
	"github.com/abelbrown/intelbrief/internal/model"
)

func testClient() *client {
	return newClient(config.IngestionConfig{
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
	})
}

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <language>en-GB</language>
    <item>
      <title>Election held in Freedonia</title>
      <link>http://example.com/article1</link>
      <guid>urn:article:1</guid>
      <description><![CDATA[<p>Voters went to the <b>polls</b>.</p><p>Turnout was high.</p>]]></description>
      <category>politics</category>
      <pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Sanctions announced</title>
      <link>http://example.com/article2</link>
      <description>Plain text summary</description>
    </item>
  </channel>
</rss>`

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSName(t *testing.T) {
	src := NewRSS("Test Feed", "http://example.com/feed.xml", model.TierB, "", testClient())
	if src.Name() != "Test Feed" {
		t.Errorf("expected 'Test Feed', got %s", src.Name())
	}
}

func TestRSSFetch(t *testing.T) {
	srv := feedServer(t, testFeed)

	src := NewRSS("Test Feed", srv.URL, model.TierB, "", testClient())
	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Election held in Freedonia" {
		t.Errorf("unexpected title: %q", first.Title)
	}
	if first.Content != "Voters went to the polls. Turnout was high." {
		t.Errorf("HTML not cleaned: %q", first.Content)
	}
	if first.Tier != model.TierB || first.SourceName != "Test Feed" {
		t.Errorf("source fields not set: %+v", first)
	}
	if first.Language != "en" {
		t.Errorf("expected feed language en, got %q", first.Language)
	}
	want := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if !first.Published.Equal(want) {
		t.Errorf("Published = %v, want %v", first.Published, want)
	}
	if first.Retrieved.IsZero() {
		t.Error("Retrieved not set")
	}
	if first.ID != hashString("urn:article:1") {
		t.Errorf("expected GUID-derived ID, got %s", first.ID)
	}
	if first.Metadata["entry_id"] != "urn:article:1" {
		t.Errorf("entry_id metadata missing: %v", first.Metadata)
	}

	second := items[1]
	if !second.Published.IsZero() {
		t.Errorf("expected zero Published for undated entry, got %v", second.Published)
	}
	if second.ID != hashString("http://example.com/article2") {
		t.Errorf("expected link-derived ID, got %s", second.ID)
	}
}

func TestRSSConfiguredLanguageWins(t *testing.T) {
	srv := feedServer(t, testFeed)

	src := NewRSS("Le Monde", srv.URL, model.TierB, "fr", testClient())
	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if items[0].Language != "fr" {
		t.Errorf("expected configured language fr, got %q", items[0].Language)
	}
}

func TestRSSIDsDeterministic(t *testing.T) {
	srv := feedServer(t, testFeed)
	src := NewRSS("Test", srv.URL, model.TierC, "", testClient())

	items1, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	items2, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if items1[0].ID != items2[0].ID {
		t.Error("IDs should be deterministic for the same entry")
	}
}

func TestRSSFetch404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewRSS("Test", srv.URL, model.TierB, "", testClient()).Fetch(context.Background())
	if !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("404 should not be retried, got %d calls", calls.Load())
	}
}

func TestRSSFetchResponseTooLarge(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	c := testClient()
	c.maxBody = int64(len(testFeed)) - 1

	_, err := NewRSS("Test", srv.URL, model.TierB, "", c).Fetch(context.Background())
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("oversized response should not be retried, got %d calls", calls.Load())
	}

	c.maxBody = int64(len(testFeed))
	if _, err := NewRSS("Test", srv.URL, model.TierB, "", c).Fetch(context.Background()); err != nil {
		t.Errorf("body exactly at the cap: %v", err)
	}
}

func TestRSSRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	items, err := NewRSS("Flaky", srv.URL, model.TierB, "", testClient()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed after retries: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRSSGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRSS("Down", srv.URL, model.TierB, "", testClient()).Fetch(context.Background())
	if !IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("expected 502 status error, got %v", err)
	}
	// one attempt plus two retries
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRSSFetchInvalidXML(t *testing.T) {
	srv := feedServer(t, "not valid xml")

	_, err := NewRSS("Test", srv.URL, model.TierB, "", testClient()).Fetch(context.Background())
	if err == nil {
		t.Error("expected error for invalid XML")
	}
}

func TestRSSFetchCancelled(t *testing.T) {
	srv := feedServer(t, testFeed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRSS("Test", srv.URL, model.TierB, "", testClient()).Fetch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain   text\n here", "plain text here"},
		{"<p>one</p><p>two</p>", "one two"},
		{"a<br>b", "a b"},
		{"<div>x<script>alert(1)</script></div>", "x"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanHTML(tt.in); got != tt.want {
			t.Errorf("CleanHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"en-US": "en",
		"fr":    "fr",
		"DE_de": "de",
		"":      "en",
	}
	for in, want := range tests {
		if got := normalizeLanguage(in); got != want {
			t.Errorf("normalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
