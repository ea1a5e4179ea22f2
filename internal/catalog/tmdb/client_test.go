package tmdb_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"platter/internal/catalog/tmdb"
	"platter/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *tmdb.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := tmdb.New("movie-key", server.URL, "en-US", tmdb.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestMovieNameFirstResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "movie-key" {
			t.Errorf("api_key = %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "heat" {
			t.Errorf("query = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Heat", "release_date": "1995-12-15"},
				{"title": "Heat", "release_date": "1986-03-07"},
			},
		})
	})

	name, err := client.MovieName(context.Background(), "heat")
	if err != nil {
		t.Fatalf("MovieName: %v", err)
	}
	if name != "Heat (1995)" {
		t.Fatalf("name = %q, want %q", name, "Heat (1995)")
	}
}

func TestMovieNameNoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	})

	_, err := client.MovieName(context.Background(), "no such movie")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMovieNameMissingYear(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Unreleased Film", "release_date": ""},
			},
		})
	})

	_, err := client.MovieName(context.Background(), "unreleased film")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMovieNameServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.MovieName(context.Background(), "anything")
	if !errors.Is(err, services.ErrCatalog) {
		t.Fatalf("err = %v, want ErrCatalog", err)
	}
}
