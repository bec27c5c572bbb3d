package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/intelbrief/internal/config"
	"github.com/abelbrown/intelbrief/internal/logging"
	"github.com/abelbrown/intelbrief/internal/model"
)

const defaultWorldBankEndpoint = "https://api.worldbank.org/v2"

// Indicator is one World Bank series tracked for economic risk.
type Indicator struct {
	Code string
	Name string
}

// WorldBankIndicators are the series fetched for every country.
var WorldBankIndicators = []Indicator{
	{Code: "NY.GDP.MKTP.CD", Name: "GDP"},
	{Code: "FP.CPI.TOTL.ZG", Name: "Inflation"},
	{Code: "CM.MKT.TRAD.GD.ZS", Name: "Stock Market"},
}

// WorldBank reads yearly economic indicators for the configured countries.
type WorldBank struct {
	name      string
	endpoint  string
	countries map[string]bool
	years     int
	perPage   int
	tier      model.Tier
	client    *client
	now       func() time.Time
}

// NewWorldBank creates a World Bank source from its configuration.
func NewWorldBank(sc config.SourceConfig, tier model.Tier, c *client) *WorldBank {
	endpoint := strings.TrimSuffix(sc.URL, "/")
	if endpoint == "" {
		endpoint = defaultWorldBankEndpoint
	}
	years := sc.Years
	if years <= 0 {
		years = 5
	}
	perPage := sc.Limit
	if perPage <= 0 {
		perPage = 1000
	}
	name := sc.Name
	if name == "" {
		name = "World Bank"
	}
	countries := make(map[string]bool, len(sc.Countries))
	for _, c := range sc.Countries {
		countries[strings.ToLower(c)] = true
	}
	return &WorldBank{
		name:      name,
		endpoint:  endpoint,
		countries: countries,
		years:     years,
		perPage:   perPage,
		tier:      tier,
		client:    c,
		now:       time.Now,
	}
}

// Name returns the configured source name.
func (s *WorldBank) Name() string {
	return s.name
}

type wbRow struct {
	Country struct {
		Value string `json:"value"`
	} `json:"country"`
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Fetch queries every indicator. A failing indicator is logged and skipped;
// the source fails only when every indicator does.
func (s *WorldBank) Fetch(ctx context.Context) ([]model.RawItem, error) {
	now := s.now().UTC()

	var (
		items   []model.RawItem
		lastErr error
		failed  int
	)
	for _, ind := range WorldBankIndicators {
		rows, err := s.fetchIndicator(ctx, ind, now)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.Warn("world bank indicator failed", "source", s.name, "indicator", ind.Code, "err", err)
			lastErr = err
			failed++
			continue
		}
		for _, row := range rows {
			if item, ok := s.convert(ind, row, now); ok {
				items = append(items, item)
			}
		}
	}
	if failed == len(WorldBankIndicators) {
		return nil, fmt.Errorf("fetch %s: %w", s.name, lastErr)
	}
	return items, nil
}

func (s *WorldBank) fetchIndicator(ctx context.Context, ind Indicator, now time.Time) ([]wbRow, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("date", fmt.Sprintf("%d:%d", now.Year()-s.years+1, now.Year()))
	q.Set("per_page", strconv.Itoa(s.perPage))
	reqURL := s.endpoint + "/country/all/indicator/" + url.PathEscape(ind.Code) + "?" + q.Encode()

	body, err := s.client.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	// The API answers with [paging, rows]; an error answers with [message].
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", ind.Code, err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("%s: unexpected response %.200s", ind.Code, body)
	}
	var rows []wbRow
	if err := json.Unmarshal(parts[1], &rows); err != nil {
		return nil, fmt.Errorf("parse %s rows: %w", ind.Code, err)
	}
	return rows, nil
}

// convert renders one row. Rows outside the country list, without a value
// or with a malformed year are skipped.
func (s *WorldBank) convert(ind Indicator, row wbRow, now time.Time) (model.RawItem, bool) {
	country := row.Country.Value
	if row.Value == nil || !s.countries[strings.ToLower(country)] {
		return model.RawItem{}, false
	}
	year, err := strconv.Atoi(row.Date)
	if err != nil {
		return model.RawItem{}, false
	}
	value := strconv.FormatFloat(*row.Value, 'f', -1, 64)

	return model.RawItem{
		ID:         fmt.Sprintf("wb_%s_%s_%s", ind.Code, country, row.Date),
		URL:        "https://data.worldbank.org/indicator/" + ind.Code,
		Title:      fmt.Sprintf("World Bank: %s - %s", ind.Name, country),
		Content:    fmt.Sprintf("World Bank %s indicator for %s: %s (Year: %s)", ind.Name, country, value, row.Date),
		SourceName: s.name,
		Tier:       s.tier,
		Language:   "en",
		Published:  time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		Retrieved:  now,
		Metadata: map[string]any{
			"dataset":        "World Bank",
			"indicator":      ind.Name,
			"indicator_code": ind.Code,
			"country":        country,
			"value":          *row.Value,
			"year":           row.Date,
		},
	}, true
}
