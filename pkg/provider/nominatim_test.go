package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/NERVsystems/osmgrid/pkg/geo"
)

func newNominatimStub(t *testing.T, status int, body string) (*NominatimResolver, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" || r.URL.Query().Get("q") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewNominatimResolver(WithNominatimURL(server.URL + "/")), &calls
}

func TestNominatimResolve(t *testing.T) {
	r, calls := newNominatimStub(t, http.StatusOK,
		`[{"place_id": 1, "display_name": "Berlin, Germany", "lat": "52.5", "lon": "13.4",
		   "boundingbox": ["52.3382448", "52.6755087", "13.0883450", "13.7611609"]}]`)

	got, err := r.Resolve(context.Background(), "Berlin")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := geo.BBox(52.3382448, 13.0883450, 52.6755087, 13.7611609)
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	// cached under the normalised name
	if _, err := r.Resolve(context.Background(), "  berlin"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, want 1", calls.Load())
	}
}

func TestNominatimResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"no match", http.StatusOK, `[]`, KindInvalidRegion},
		{"bad json", http.StatusOK, `{`, KindParse},
		{"short bbox", http.StatusOK, `[{"boundingbox": ["1", "2"]}]`, KindParse},
		{"non numeric bbox", http.StatusOK, `[{"boundingbox": ["a", "2", "3", "4"]}]`, KindParse},
		{"point place", http.StatusOK, `[{"boundingbox": ["1", "1", "2", "2"]}]`, KindInvalidRegion},
		{"rate limited", http.StatusTooManyRequests, ``, KindRateLimited},
		{"unavailable", http.StatusServiceUnavailable, ``, KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newNominatimStub(t, tt.status, tt.body)
			_, err := r.Resolve(context.Background(), "Somewhere")
			if KindOf(err) != tt.want {
				t.Errorf("got %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestParseNominatimBBox(t *testing.T) {
	got, err := parseNominatimBBox([]string{"10", "20", "30", "40"})
	if err != nil {
		t.Fatal(err)
	}
	if got.South() != 10 || got.North() != 20 || got.West() != 30 || got.East() != 40 {
		t.Errorf("unexpected bbox %v", got)
	}
}
