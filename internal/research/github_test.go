package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGitHubFetchFiltersAndCaps(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		body := map[string]interface{}{
			"items": []map[string]interface{}{
				{"full_name": "big/repo1", "description": "d1", "stargazers_count": 9000, "html_url": "https://github.com/big/repo1"},
				{"full_name": "big/repo2", "description": "d2", "stargazers_count": 5000, "html_url": "https://github.com/big/repo2"},
				{"full_name": "small/repo", "description": "d3", "stargazers_count": 50, "html_url": "https://github.com/small/repo"},
				{"full_name": "big/repo3", "description": "d4", "stargazers_count": 4000, "html_url": "https://github.com/big/repo3"},
				{"full_name": "big/repo4", "description": "d5", "stargazers_count": 3000, "html_url": "https://github.com/big/repo4"},
				{"full_name": "big/repo5", "description": "d6", "stargazers_count": 2000, "html_url": "https://github.com/big/repo5"},
				{"full_name": "big/repo6", "description": "d7", "stargazers_count": 1000, "html_url": "https://github.com/big/repo6"},
			},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL, "", 5*time.Second, testLogger())
	got, ok := a.Fetch(context.Background(), "react hooks", "jsx")
	if !ok {
		t.Fatal("expected ok")
	}
	if len(got) != 5 {
		t.Fatalf("got %d examples, want cap of 5", len(got))
	}
	for _, ex := range got {
		if ex.Stars < 100 {
			t.Fatalf("kept a repo below the star floor: %+v", ex)
		}
	}
	// jsx is not an indexed search language; the alias table maps it.
	if gotQuery != "react hooks stars:>=100 language:javascript" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestGitHubFetchNoLanguage(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL, "", 5*time.Second, testLogger())
	got, ok := a.Fetch(context.Background(), "git workflows", "")
	if !ok {
		t.Fatal("an empty healthy result is still ok")
	}
	if len(got) != 0 {
		t.Fatalf("got %d examples, want 0", len(got))
	}
	if gotQuery != "git workflows stars:>=100" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestGitHubFetchUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden) // rate limited
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL, "", 5*time.Second, testLogger())
	got, ok := a.Fetch(context.Background(), "topic", "python")
	if ok {
		t.Fatal("expected ok=false on upstream failure")
	}
	if got != nil {
		t.Fatalf("expected nil examples, got %v", got)
	}
}

func TestMapGHLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jsx", "javascript"},
		{"tsx", "typescript"},
		{"cpp", "c++"},
		{"golang", "go"},
		{"Python", "python"},
		{"", ""},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := mapGHLanguage(tt.in); got != tt.want {
			t.Fatalf("mapGHLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
