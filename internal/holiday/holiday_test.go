package holiday

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchPublicParsesNamedDates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("jahr") != "2024" || r.URL.Query().Get("nur_land") != "BY" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{
			"Neujahrstag": {"datum": "2024-01-01"},
			"Tag der Arbeit": {"datum": "2024-05-01"}
		}`))
	}))
	defer server.Close()

	client := NewClient("BY")
	client.PublicBaseURL = server.URL

	holidays, err := client.FetchPublic(context.Background(), 2024)
	if err != nil {
		t.Fatalf("fetch public: %v", err)
	}
	if len(holidays) != 2 {
		t.Fatalf("expected 2 holidays, got %d", len(holidays))
	}
	if holidays[0].Date != "2024-01-01" || holidays[0].Name != "Neujahrstag" {
		t.Fatalf("unexpected first holiday: %+v", holidays[0])
	}
	if holidays[0].Kind != KindPublic {
		t.Fatalf("expected kind %q, got %q", KindPublic, holidays[0].Kind)
	}
}

func TestFetchSchoolKeepsOnlyTargetYearDays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/2023/") {
			// Span crossing the year boundary; only the 2024 days count.
			_, _ = w.Write([]byte(`[{"name": "weihnachtsferien", "start": "2023-12-23T00:00:00Z", "end": "2024-01-06T00:00:00Z"}]`))
			return
		}
		_, _ = w.Write([]byte(`[{"name": "osterferien", "start": "2024-03-25T00:00:00Z", "end": "2024-03-27T00:00:00Z"}]`))
	}))
	defer server.Close()

	client := NewClient("BY")
	client.SchoolBaseURL = server.URL

	holidays, err := client.FetchSchool(context.Background(), 2024)
	if err != nil {
		t.Fatalf("fetch school: %v", err)
	}

	// 2024-01-01..05 from the crossing span plus 2024-03-25..26.
	if len(holidays) != 7 {
		t.Fatalf("expected 7 holiday days, got %d: %+v", len(holidays), holidays)
	}
	if holidays[0].Date != "2024-01-01" {
		t.Fatalf("expected first day 2024-01-01, got %s", holidays[0].Date)
	}
	for _, h := range holidays {
		if !strings.HasPrefix(h.Date, "2024-") {
			t.Fatalf("day outside target year: %s", h.Date)
		}
		if h.Kind != KindSchool {
			t.Fatalf("expected kind %q, got %q", KindSchool, h.Kind)
		}
	}
}

func TestFetchPublicErrorOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("BY")
	client.PublicBaseURL = server.URL

	if _, err := client.FetchPublic(context.Background(), 2024); err == nil {
		t.Fatalf("expected error on 502 response")
	}
}
