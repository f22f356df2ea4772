package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adsb_analytics/internal/storage"
)

// fakeStore serves canned data for handler tests.
type fakeStore struct {
	enrichment   map[string]*storage.EnrichmentRecord
	observations map[string][]storage.Observation
	dayRows      []storage.Observation
	stats        storage.Stats
}

func (f *fakeStore) AppendObservations(context.Context, []storage.Observation) (int, error) {
	return 0, nil
}

func (f *fakeStore) ListEnrichmentCandidates(context.Context, storage.CandidateQuery) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) UpsertEnrichment(context.Context, storage.EnrichmentRecord) error {
	return nil
}

func (f *fakeStore) GetEnrichment(_ context.Context, hex string) (*storage.EnrichmentRecord, error) {
	return f.enrichment[hex], nil
}

func (f *fakeStore) ListObservationsByAircraft(_ context.Context, hex string, limit int) ([]storage.Observation, error) {
	obs := f.observations[hex]
	if limit > 0 && len(obs) > limit {
		obs = obs[:limit]
	}
	return obs, nil
}

func (f *fakeStore) ListObservationsForDay(context.Context, time.Time) ([]storage.Observation, error) {
	return f.dayRows, nil
}

func (f *fakeStore) GetStats(context.Context) (*storage.Stats, error) {
	return &f.stats, nil
}

func (f *fakeStore) Close() error { return nil }

func strPtr(s string) *string   { return &s }
func intPtr(i int) *int         { return &i }
func f64Ptr(v float64) *float64 { return &v }

func newTestServer(store *fakeStore, cfg Config) *httptest.Server {
	s := NewServer(store, cfg)
	return httptest.NewServer(s.Router())
}

func testStore() *fakeStore {
	return &fakeStore{
		enrichment: map[string]*storage.EnrichmentRecord{
			"7C6DB8": {
				Hex:          "7C6DB8",
				Registration: strPtr("VH-VYI"),
				Source:       "adsbdb",
				LastUpdated:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			},
		},
		observations: map[string][]storage.Observation{
			"7C6DB8": {
				{
					Hex:         "7C6DB8",
					CapturedAt:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
					Flight:      strPtr("QFA123"),
					Lat:         f64Ptr(-33.95),
					Lon:         f64Ptr(151.18),
					AltBaro:     intPtr(37000),
					GroundSpeed: f64Ptr(450),
				},
			},
		},
		stats: storage.Stats{TotalAircraft: 1, TotalObservations: 1, Enriched: 1, WithRegistration: 1},
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(testStore(), Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestGetAircraft(t *testing.T) {
	srv := newTestServer(testStore(), Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/aircraft/7c6db8")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body AircraftResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Hex != "7C6DB8" {
		t.Errorf("hex = %s, want normalized 7C6DB8", body.Hex)
	}
	if body.Enrichment == nil || *body.Enrichment.Registration != "VH-VYI" {
		t.Errorf("enrichment = %+v", body.Enrichment)
	}
	if body.LastSeen == nil || body.LastSeen.Flight == nil || *body.LastSeen.Flight != "QFA123" {
		t.Errorf("last seen = %+v", body.LastSeen)
	}
}

func TestGetAircraftNeverObserved(t *testing.T) {
	srv := newTestServer(testStore(), Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/aircraft/ABCDEF")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetAircraftInvalidHex(t *testing.T) {
	srv := newTestServer(testStore(), Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/aircraft/xyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetObservations(t *testing.T) {
	srv := newTestServer(testStore(), Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/aircraft/7C6DB8/observations?limit=10")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var obs []storage.Observation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(obs) != 1 {
		t.Errorf("got %d observations, want 1", len(obs))
	}
}

func TestDayLog(t *testing.T) {
	store := testStore()
	store.dayRows = store.observations["7C6DB8"]
	srv := newTestServer(store, Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/day/2026-08-30/log")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %s", ct)
	}

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	got := strings.TrimSpace(string(buf[:n]))
	want := "QFA123 (7C6DB8) at 37000 ft, 450 kt, -33.95, 151.18"
	if got != want {
		t.Errorf("log line = %q, want %q", got, want)
	}
}

func TestDayLogBadDate(t *testing.T) {
	srv := newTestServer(testStore(), Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/day/yesterday/log")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	srv := newTestServer(testStore(), Config{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var stats storage.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalAircraft != 1 || stats.Enriched != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(testStore(), Config{AuthEnabled: true, APIKeys: []string{"secret"}})
	defer srv.Close()

	tests := []struct {
		name       string
		setup      func(*http.Request)
		wantStatus int
	}{
		{"no key", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong key", func(r *http.Request) { r.Header.Set("X-API-Key", "nope") }, http.StatusForbidden},
		{"header key", func(r *http.Request) { r.Header.Set("X-API-Key", "secret") }, http.StatusOK},
		{"bearer key", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret") }, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/stats", nil)
			tc.setup(req)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("do: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
		})
	}

	// Query parameter fallback.
	resp, err := http.Get(srv.URL + "/stats?api_key=secret")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("query param auth status = %d, want 200", resp.StatusCode)
	}
}
