package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{BaseURL: url, Timeout: 2 * time.Second})
}

func TestLookupFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/aircraft/7C6DB8" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"response":{"aircraft":{
			"registration":"VH-VYI",
			"icao_type":"B738",
			"manufacturer":"Boeing",
			"registered_owner":"Qantas",
			"registered_owner_country_name":"Australia"}}}`))
	}))
	defer srv.Close()

	results := newTestClient(srv.URL).LookupBatch(context.Background(), []string{"7C6DB8"})
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	found, ok := results[0].Outcome.(Found)
	if !ok {
		t.Fatalf("outcome = %#v, want Found", results[0].Outcome)
	}
	if found.Registration != "VH-VYI" || found.Type != "B738" || found.Operator != "Qantas" {
		t.Errorf("found = %+v", found)
	}
	if found.OriginCountry != "Australia" {
		t.Errorf("origin country = %q", found.OriginCountry)
	}
}

func TestLookupUnknownAircraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"unknown aircraft"}`))
	}))
	defer srv.Close()

	results := newTestClient(srv.URL).LookupBatch(context.Background(), []string{"AAAAAA"})
	if _, ok := results[0].Outcome.(Empty); !ok {
		t.Errorf("outcome = %#v, want Empty", results[0].Outcome)
	}
}

func TestLookupNotFoundStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"response":"unknown aircraft"}`))
	}))
	defer srv.Close()

	results := newTestClient(srv.URL).LookupBatch(context.Background(), []string{"AAAAAA"})
	if _, ok := results[0].Outcome.(Empty); !ok {
		t.Errorf("outcome = %#v, want Empty", results[0].Outcome)
	}
}

func TestLookupRateLimitedIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	results := newTestClient(srv.URL).LookupBatch(context.Background(), []string{"AAAAAA"})
	if _, ok := results[0].Outcome.(Failed); !ok {
		t.Errorf("outcome = %#v, want Failed so the aircraft is retried", results[0].Outcome)
	}
}

func TestLookupServerErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	results := newTestClient(srv.URL).LookupBatch(context.Background(), []string{"AAAAAA"})
	if _, ok := results[0].Outcome.(Failed); !ok {
		t.Errorf("outcome = %#v, want Failed", results[0].Outcome)
	}
}

func TestLookupUnreachableIsFailure(t *testing.T) {
	results := newTestClient("http://localhost:1").LookupBatch(context.Background(), []string{"AAAAAA"})
	if _, ok := results[0].Outcome.(Failed); !ok {
		t.Errorf("outcome = %#v, want Failed", results[0].Outcome)
	}
}

func TestLookupBatchMixedOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0/aircraft/7C6DB8":
			w.Write([]byte(`{"response":{"aircraft":{"registration":"VH-VYI"}}}`))
		case "/v0/aircraft/BBBBBB":
			w.Write([]byte(`{"response":"unknown aircraft"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	results := newTestClient(srv.URL).LookupBatch(context.Background(), []string{"7C6DB8", "BBBBBB", "CCCCCC"})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if _, ok := results[0].Outcome.(Found); !ok {
		t.Errorf("7C6DB8 outcome = %#v, want Found", results[0].Outcome)
	}
	if _, ok := results[1].Outcome.(Empty); !ok {
		t.Errorf("BBBBBB outcome = %#v, want Empty", results[1].Outcome)
	}
	if _, ok := results[2].Outcome.(Failed); !ok {
		t.Errorf("CCCCCC outcome = %#v, want Failed", results[2].Outcome)
	}
	for i, hex := range []string{"7C6DB8", "BBBBBB", "CCCCCC"} {
		if results[i].Hex != hex {
			t.Errorf("results[%d].Hex = %s, want %s", i, results[i].Hex, hex)
		}
	}
}

func TestLookupBatchPacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"unknown aircraft"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, MinInterval: 300 * time.Millisecond})
	clock := newFakeClock()
	c.pacer.now = clock.now
	c.pacer.sleep = clock.sleep

	c.LookupBatch(context.Background(), []string{"AAAAAA", "BBBBBB", "CCCCCC"})

	// Requests complete in well under the interval on a local server, so
	// every call after the first must sleep.
	if len(clock.slept) != 2 {
		t.Errorf("slept %v times, want 2", len(clock.slept))
	}
}
