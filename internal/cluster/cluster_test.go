package cluster

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/abelbrown/intelbrief/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func item(id, title, content, url string, at time.Time) model.RawItem {
	return model.RawItem{
		ID:         id,
		URL:        url,
		Title:      title,
		Content:    content,
		SourceName: "src-" + id,
		Tier:       model.TierB,
		Published:  at,
		Retrieved:  at,
	}
}

func ids(c model.Cluster) []string {
	var out []string
	for _, it := range c.Items {
		out = append(out, it.ID)
	}
	return out
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"election held in country a", "election held in country a", 1},
		{"Election Held", "election held", 1},
		{"a b c d", "a b", 0.5},
		{"alpha", "beta", 0},
		{"", "anything", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		got := Jaccard(WordSet(tt.a), WordSet(tt.b))
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Jaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClusterEmpty(t *testing.T) {
	if got := New(DefaultConfig()).Cluster(nil); got != nil {
		t.Errorf("Cluster(nil) = %v, want nil", got)
	}
}

func TestSimilarTitlesWithinWindowShareCluster(t *testing.T) {
	items := []model.RawItem{
		item("b", "Election held in Country A", "", "https://two.example/x", t0.Add(10*time.Minute)),
		item("a", "Election held in Country A", "", "https://one.example/y", t0),
	}
	got := New(DefaultConfig()).Cluster(items)
	if len(got) != 1 {
		t.Fatalf("got %d clusters, want 1", len(got))
	}
	if got[0].Len() != 2 {
		t.Fatalf("cluster size = %d, want 2", got[0].Len())
	}
	if got[0].Anchor().ID != "a" {
		t.Errorf("anchor = %s, want earliest item a", got[0].Anchor().ID)
	}
}

func TestIdenticalItemsOutsideWindowStaySeparate(t *testing.T) {
	items := []model.RawItem{
		item("a", "Protest in the capital", "Thousands marched.", "", t0),
		item("b", "Protest in the capital", "Thousands marched.", "", t0.Add(25*time.Hour)),
	}
	got := New(DefaultConfig()).Cluster(items)
	if len(got) != 2 {
		t.Fatalf("got %d clusters, want 2", len(got))
	}
	for _, c := range got {
		if c.Len() != 1 {
			t.Errorf("cluster %v is not a singleton", ids(c))
		}
	}
}

func TestContentSimilarityAdmits(t *testing.T) {
	body := "troops crossed the northern border overnight according to officials"
	items := []model.RawItem{
		item("a", "Breaking", body, "", t0),
		item("b", "Update", body+" today", "", t0.Add(time.Hour)),
	}
	got := New(DefaultConfig()).Cluster(items)
	if len(got) != 1 {
		t.Fatalf("got %d clusters, want 1", len(got))
	}
}

func TestSameHostLowersContentBar(t *testing.T) {
	// Content Jaccard is 6/11 (~0.545): above 0.5, below 0.6.
	a := "one two three four five six seven eight"
	b := "one two three four five six nine ten eleven"
	cfg := DefaultConfig()

	sameHost := New(cfg).Cluster([]model.RawItem{
		item("a", "first", a, "https://news.example/1", t0),
		item("b", "second", b, "https://news.example/2", t0.Add(time.Hour)),
	})
	if len(sameHost) != 1 {
		t.Errorf("same host: got %d clusters, want 1", len(sameHost))
	}

	otherHost := New(cfg).Cluster([]model.RawItem{
		item("a", "first", a, "https://news.example/1", t0),
		item("b", "second", b, "https://other.example/2", t0.Add(time.Hour)),
	})
	if len(otherHost) != 2 {
		t.Errorf("different hosts: got %d clusters, want 2", len(otherHost))
	}
}

func TestGreedyClusteringIsNotTransitive(t *testing.T) {
	// b is similar to both a and c, but c is not similar to a.
	items := []model.RawItem{
		item("a", "w1 w2 w3 w4", "", "", t0),
		item("b", "w1 w2 w3 w4 w5", "", "", t0.Add(time.Minute)),
		item("c", "w2 w3 w4 w5 w6", "", "", t0.Add(2*time.Minute)),
	}
	got := New(DefaultConfig()).Cluster(items)
	if len(got) != 2 {
		t.Fatalf("got %d clusters, want 2", len(got))
	}
	if fmt.Sprint(ids(got[0])) != "[a b]" || fmt.Sprint(ids(got[1])) != "[c]" {
		t.Errorf("clusters = %v %v, want [a b] [c]", ids(got[0]), ids(got[1]))
	}
}

func TestClusterPartitionsInput(t *testing.T) {
	var items []model.RawItem
	for i := 0; i < 20; i++ {
		title := fmt.Sprintf("story %d about topic %d", i%4, i%4)
		items = append(items, item(fmt.Sprint(i), title, "", "", t0.Add(time.Duration(i)*time.Hour)))
	}
	got := New(DefaultConfig()).Cluster(items)

	seen := make(map[string]int)
	for _, c := range got {
		if c.Len() == 0 {
			t.Fatal("empty cluster")
		}
		for _, it := range c.Items {
			seen[it.ID]++
		}
	}
	if len(seen) != len(items) {
		t.Errorf("%d distinct items clustered, want %d", len(seen), len(items))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("item %s appears in %d clusters", id, n)
		}
	}
}

func TestEffectiveTimeFallsBackToRetrieved(t *testing.T) {
	a := item("a", "Ceasefire agreed in the north", "", "", time.Time{})
	a.Retrieved = t0
	b := item("b", "Ceasefire agreed in the north", "", "", t0.Add(2*time.Hour))
	if !New(DefaultConfig()).Similar(a, b) {
		t.Error("items within window by retrieval time should be similar")
	}
}
