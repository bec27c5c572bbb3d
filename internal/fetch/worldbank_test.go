package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/intelbrief/internal/config"
	"github.com/abelbrown/intelbrief/internal/model"
)

const wbInflation = `[
  {"page": 1, "pages": 1, "per_page": 1000, "total": 4},
  [
    {"indicator": {"id": "FP.CPI.TOTL.ZG", "value": "Inflation"}, "country": {"id": "FD", "value": "Freedonia"}, "date": "2025", "value": 12.5},
    {"indicator": {"id": "FP.CPI.TOTL.ZG", "value": "Inflation"}, "country": {"id": "FD", "value": "Freedonia"}, "date": "2024", "value": null},
    {"indicator": {"id": "FP.CPI.TOTL.ZG", "value": "Inflation"}, "country": {"id": "SY", "value": "Sylvania"}, "date": "2025", "value": 3},
    {"indicator": {"id": "FP.CPI.TOTL.ZG", "value": "Inflation"}, "country": {"id": "FD", "value": "Freedonia"}, "date": "n/a", "value": 1}
  ]
]`

func newWorldBankServer(t *testing.T, handle func(code string, w http.ResponseWriter)) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu      sync.Mutex
		queries []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Path+"?"+r.URL.RawQuery)
		mu.Unlock()
		handle(r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:], w)
	}))
	t.Cleanup(srv.Close)
	return srv, &queries
}

func TestWorldBankFetch(t *testing.T) {
	srv, queries := newWorldBankServer(t, func(code string, w http.ResponseWriter) {
		if code == "FP.CPI.TOTL.ZG" {
			w.Write([]byte(wbInflation))
			return
		}
		w.Write([]byte(`[{"page": 1, "pages": 0, "total": 0}, null]`))
	})

	src := NewWorldBank(config.SourceConfig{Name: "WB", URL: srv.URL, Countries: []string{"freedonia"}, Years: 2}, model.TierA, testClient())
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(*queries) != len(WorldBankIndicators) {
		t.Fatalf("expected %d requests, got %d", len(WorldBankIndicators), len(*queries))
	}
	for _, q := range *queries {
		if !strings.Contains(q, "/country/all/indicator/") || !strings.Contains(q, "date=2025%3A2026") || !strings.Contains(q, "format=json") {
			t.Errorf("unexpected request %q", q)
		}
	}

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d: %+v", len(items), items)
	}
	it := items[0]
	if it.ID != "wb_FP.CPI.TOTL.ZG_Freedonia_2025" {
		t.Errorf("unexpected ID %q", it.ID)
	}
	if it.Title != "World Bank: Inflation - Freedonia" {
		t.Errorf("unexpected title %q", it.Title)
	}
	if it.Content != "World Bank Inflation indicator for Freedonia: 12.5 (Year: 2025)" {
		t.Errorf("unexpected content %q", it.Content)
	}
	if it.SourceName != "WB" || it.Tier != model.TierA || !it.Retrieved.Equal(now) {
		t.Errorf("unexpected source fields: %+v", it)
	}
	if !it.Published.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected Published %v", it.Published)
	}
}

func TestWorldBankFailingIndicatorIsSkipped(t *testing.T) {
	srv, _ := newWorldBankServer(t, func(code string, w http.ResponseWriter) {
		if code == "FP.CPI.TOTL.ZG" {
			w.Write([]byte(wbInflation))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	})

	src := NewWorldBank(config.SourceConfig{URL: srv.URL, Countries: []string{"Freedonia"}}, model.TierA, testClient())
	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected the inflation item only, got %d", len(items))
	}
}

func TestWorldBankAllIndicatorsFail(t *testing.T) {
	srv, _ := newWorldBankServer(t, func(code string, w http.ResponseWriter) {
		w.Write([]byte(`[{"message": [{"id": "120", "value": "Invalid value"}]}]`))
	})

	src := NewWorldBank(config.SourceConfig{URL: srv.URL, Countries: []string{"Freedonia"}}, model.TierA, testClient())
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error when every indicator fails")
	}
	if src.Name() != "World Bank" {
		t.Errorf("default name = %q", src.Name())
	}
}
