// Package holiday fetches German public and school holidays and keeps
// a local cache so the calendar still renders offline.
package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/Joseda-hg/lazycal/internal/db"
	"github.com/Joseda-hg/lazycal/internal/log"
	"github.com/Joseda-hg/lazycal/internal/model"
)

const (
	KindPublic = "public"
	KindSchool = "school"

	defaultPublicBaseURL = "https://feiertage-api.de"
	defaultSchoolBaseURL = "https://ferien-api.maxleistner.de"
)

type Client struct {
	HTTP  *http.Client
	State string

	// Base URLs are overridable so tests can point at a local server.
	PublicBaseURL string
	SchoolBaseURL string
}

func NewClient(state string) *Client {
	return &Client{
		HTTP:          &http.Client{Timeout: 15 * time.Second},
		State:         state,
		PublicBaseURL: defaultPublicBaseURL,
		SchoolBaseURL: defaultSchoolBaseURL,
	}
}

// FetchPublic returns the public holidays of one year for the
// configured state.
func (c *Client) FetchPublic(ctx context.Context, year int) ([]model.Holiday, error) {
	url := fmt.Sprintf("%s/api/?jahr=%d&nur_land=%s", c.PublicBaseURL, year, c.State)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	// The API keys the response by holiday name.
	var payload map[string]struct {
		Datum string `json:"datum"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode public holidays: %w", err)
	}

	holidays := make([]model.Holiday, 0, len(payload))
	for name, entry := range payload {
		if entry.Datum == "" {
			continue
		}
		holidays = append(holidays, model.Holiday{Date: entry.Datum, Name: name, Kind: KindPublic})
	}
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Date < holidays[j].Date })
	return holidays, nil
}

type schoolSpan struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// FetchSchool returns one entry per school holiday day in the given
// year. Spans are published per school year, so the request covers the
// target year and the one before and keeps only days inside the target.
func (c *Client) FetchSchool(ctx context.Context, year int) ([]model.Holiday, error) {
	spans := make([]schoolSpan, 0)
	for _, requestYear := range []int{year - 1, year} {
		url := fmt.Sprintf("%s/api/v1/%d/%s/", c.SchoolBaseURL, requestYear, c.State)
		body, err := c.get(ctx, url)
		if err != nil {
			return nil, err
		}
		var yearSpans []schoolSpan
		if err := json.Unmarshal(body, &yearSpans); err != nil {
			return nil, fmt.Errorf("decode school holidays: %w", err)
		}
		spans = append(spans, yearSpans...)
	}

	seen := map[string]bool{}
	holidays := make([]model.Holiday, 0)
	for _, span := range spans {
		start, err := parseAPITime(span.Start)
		if err != nil {
			log.Error("skipping school holiday span", err, "name", span.Name)
			continue
		}
		end, err := parseAPITime(span.End)
		if err != nil {
			log.Error("skipping school holiday span", err, "name", span.Name)
			continue
		}
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			if d.Year() != year {
				continue
			}
			key := d.Format("2006-01-02")
			if seen[key] {
				continue
			}
			seen[key] = true
			holidays = append(holidays, model.Holiday{Date: key, Name: span.Name, Kind: KindSchool})
		}
	}
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Date < holidays[j].Date })
	return holidays, nil
}

// Refresh fetches both holiday kinds for a year and stores them. A
// failed fetch leaves the previously cached rows of that kind intact.
func (c *Client) Refresh(ctx context.Context, store *db.Store, year int) error {
	var firstErr error

	public, err := c.FetchPublic(ctx, year)
	if err != nil {
		log.Error("public holiday fetch failed, keeping cache", err, "year", year, "state", c.State)
		firstErr = err
	} else if err := store.SaveHolidays(ctx, KindPublic, year, public); err != nil {
		return err
	} else {
		log.Info("public holidays refreshed", "year", year, "count", len(public))
	}

	school, err := c.FetchSchool(ctx, year)
	if err != nil {
		log.Error("school holiday fetch failed, keeping cache", err, "year", year, "state", c.State)
		if firstErr == nil {
			firstErr = err
		}
	} else if err := store.SaveHolidays(ctx, KindSchool, year, school); err != nil {
		return err
	} else {
		log.Info("school holidays refreshed", "year", year, "count", len(school))
	}

	return firstErr
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday api: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func parseAPITime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", value)
}
