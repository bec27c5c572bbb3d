package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abelbrown/intelbrief/internal/config"
	"github.com/abelbrown/intelbrief/internal/model"
)

const (
	defaultACLEDEndpoint = "https://api.acleddata.com/acled/read"
	acledExportURL       = "https://acleddata.com/data-export-tool/"
	acledDateLayout      = "2006-01-02"
)

// ACLED reads recent conflict events from the ACLED dataset API and renders
// each row as a raw item with structured content.
type ACLED struct {
	name     string
	endpoint string
	apiKey   string
	email    string
	days     int
	limit    int
	tier     model.Tier
	client   *client
	now      func() time.Time
}

// NewACLED creates an ACLED source from its configuration.
func NewACLED(sc config.SourceConfig, tier model.Tier, c *client) *ACLED {
	endpoint := sc.URL
	if endpoint == "" {
		endpoint = defaultACLEDEndpoint
	}
	days := sc.Days
	if days <= 0 {
		days = 30
	}
	limit := sc.Limit
	if limit <= 0 {
		limit = 100
	}
	name := sc.Name
	if name == "" {
		name = "ACLED"
	}
	return &ACLED{
		name:     name,
		endpoint: endpoint,
		apiKey:   sc.APIKey,
		email:    sc.Email,
		days:     days,
		limit:    limit,
		tier:     tier,
		client:   c,
		now:      time.Now,
	}
}

// Name returns the configured source name.
func (s *ACLED) Name() string {
	return s.name
}

type acledResponse struct {
	Success bool       `json:"success"`
	Error   any        `json:"error"`
	Data    []acledRow `json:"data"`
}

type acledRow struct {
	DataID       acledValue `json:"data_id"`
	EventDate    acledValue `json:"event_date"`
	EventType    acledValue `json:"event_type"`
	SubEventType acledValue `json:"sub_event_type"`
	Actor1       acledValue `json:"actor1"`
	Actor2       acledValue `json:"actor2"`
	Country      acledValue `json:"country"`
	Admin1       acledValue `json:"admin1"`
	Admin2       acledValue `json:"admin2"`
	Fatalities   acledValue `json:"fatalities"`
	Notes        acledValue `json:"notes"`
	Latitude     acledValue `json:"latitude"`
	Longitude    acledValue `json:"longitude"`
}

// acledValue accepts both the string and numeric encodings the API uses.
type acledValue string

func (v *acledValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = acledValue(s)
		return nil
	}
	*v = acledValue(b)
	return nil
}

func (v acledValue) or(fallback string) string {
	if v == "" {
		return fallback
	}
	return string(v)
}

// Fetch queries the last configured days of events.
func (s *ACLED) Fetch(ctx context.Context) ([]model.RawItem, error) {
	end := s.now().UTC()
	start := end.AddDate(0, 0, -s.days)

	q := url.Values{}
	q.Set("key", s.apiKey)
	if s.email != "" {
		q.Set("email", s.email)
	}
	q.Set("event_date", start.Format(acledDateLayout)+"|"+end.Format(acledDateLayout))
	q.Set("event_date_where", "BETWEEN")
	q.Set("limit", fmt.Sprint(s.limit))

	reqURL := s.endpoint
	if strings.Contains(reqURL, "?") {
		reqURL += "&" + q.Encode()
	} else {
		reqURL += "?" + q.Encode()
	}

	body, err := s.client.get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.name, err)
	}

	var resp acledResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", s.name, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s request rejected: %v", s.name, resp.Error)
	}

	items := make([]model.RawItem, 0, len(resp.Data))
	for _, row := range resp.Data {
		item, ok := s.convert(row, end)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// convert renders one row. Rows without an ID or a parseable date are skipped.
func (s *ACLED) convert(row acledRow, now time.Time) (model.RawItem, bool) {
	if row.DataID == "" {
		return model.RawItem{}, false
	}
	date, err := time.Parse(acledDateLayout, string(row.EventDate))
	if err != nil {
		return model.RawItem{}, false
	}

	kind := row.SubEventType.or("Unknown")
	var b strings.Builder
	fmt.Fprintf(&b, "Event Type: %s. ", kind)
	fmt.Fprintf(&b, "Location: %s, %s, %s. ", row.Admin1, row.Admin2, row.Country)
	fmt.Fprintf(&b, "Actors: %s vs %s. ", row.Actor1, row.Actor2)
	fmt.Fprintf(&b, "Fatalities: %s. ", row.Fatalities.or("0"))
	fmt.Fprintf(&b, "Notes: %s", row.Notes)

	return model.RawItem{
		ID:         "acled_" + string(row.DataID),
		URL:        acledExportURL,
		Title:      fmt.Sprintf("ACLED Event: %s in %s", row.SubEventType.or("Conflict Event"), row.Country),
		Content:    b.String(),
		SourceName: s.name,
		Tier:       s.tier,
		Language:   "en",
		Published:  date,
		Retrieved:  now,
		Metadata: map[string]any{
			"dataset":    "ACLED",
			"event_id":   string(row.DataID),
			"country":    string(row.Country),
			"event_type": string(row.SubEventType),
			"fatalities": row.Fatalities.or("0"),
			"latitude":   string(row.Latitude),
			"longitude":  string(row.Longitude),
		},
	}, true
}
