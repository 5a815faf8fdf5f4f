package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_jobpreview/internal/engine"
)

const sampleJSearchJSON = `{
	"status": "OK",
	"request_id": "abc",
	"data": [
		{
			"job_title": "Data Science Intern",
			"employer_name": "Acme Corp",
			"job_location": "New York, NY",
			"job_employment_type": "INTERN",
			"job_apply_link": "https://acme.example/apply/1",
			"employer_website": null,
			"job_description": "Build models."
		},
		{
			"job_title": "ML Intern",
			"employer_name": "Beta",
			"job_apply_link": "https://beta.example/apply"
		}
	]
}`

// initJSearch points the engine at srv and disables caching for the test.
func initJSearch(t *testing.T, srv *httptest.Server, key string) {
	t.Helper()
	engine.Init(engine.Config{
		JSearchAPIKey:  key,
		JSearchAPIHost: "jsearch.test",
		JSearchBaseURL: srv.URL,
		FetchTimeout:   5 * time.Second,
		HTTPClient:     srv.Client(),
	})
}

func TestSearchListingsRequest(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleJSearchJSON))
	}))
	defer srv.Close()
	initJSearch(t, srv, "secret")

	listings := SearchListings(context.Background(), "Remote data science internship in New York", 1)
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}
	if title := listings[0].Str("job_title"); title != "Data Science Intern" {
		t.Errorf("first title = %q", title)
	}
	if got == nil {
		t.Fatal("no request reached the server")
	}
	if got.URL.Path != "/search" {
		t.Errorf("path = %q, want /search", got.URL.Path)
	}

	q := got.URL.Query()
	tests := []struct{ name, got, want string }{
		{"query", q.Get("query"), "data science New jobs in NEW_YORK"},
		{"page", q.Get("page"), "1"},
		{"num_pages", q.Get("num_pages"), "1"},
		{"country", q.Get("country"), "us"},
		{"date_posted", q.Get("date_posted"), "all"},
		{"key header", got.Header.Get("x-rapidapi-key"), "secret"},
		{"host header", got.Header.Get("x-rapidapi-host"), "jsearch.test"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestSearchListingsSoftFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"forbidden", http.StatusForbidden, `{"message":"not subscribed"}`},
		{"malformed body", http.StatusOK, `{"data": [`},
		{"missing data", http.StatusOK, `{"status":"OK"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			initJSearch(t, srv, "secret")

			listings := SearchListings(context.Background(), "golang developer "+tt.name, 1)
			if listings == nil || len(listings) != 0 {
				t.Errorf("listings = %#v, want empty non-nil slice", listings)
			}
		})
	}
}

func TestSearchListingsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	initJSearch(t, srv, "secret")
	srv.Close()

	engine.DefaultRetryConfig.MaxRetries = 0
	t.Cleanup(func() { engine.DefaultRetryConfig.MaxRetries = 2 })

	if got := SearchListings(context.Background(), "asdkjhasdkjh1239487", 1); len(got) != 0 {
		t.Errorf("got %d listings, want none", len(got))
	}
}

func TestSearchListingsMissingKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()
	initJSearch(t, srv, "")

	if got := SearchListings(context.Background(), "python developer", 1); len(got) != 0 {
		t.Errorf("got %d listings, want none", len(got))
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("server called %d times without a key", n)
	}
}

func TestParseJSearchResponse(t *testing.T) {
	listings, err := parseJSearchResponse([]byte(sampleJSearchJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}
	if w := listings[0].Str("employer_website"); w != "" {
		t.Errorf("null website read as %q", w)
	}
	if _, err := parseJSearchResponse([]byte(`invalid json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}
