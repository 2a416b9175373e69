package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var devtoNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func devtoServer(t *testing.T, byWindow map[string][]devtoArticle) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		window := r.URL.Query().Get("top")
		articles, ok := byWindow[window]
		if !ok {
			articles = []devtoArticle{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(articles)
	}))
}

func devtoTestArticle(title string, reactions int, age time.Duration) devtoArticle {
	return devtoArticle{
		Title:          title,
		Description:    "notes on " + title,
		ReactionsCount: reactions,
		URL:            "https://dev.to/a/" + title,
		PublishedAt:    devtoNow.Add(-age).Format(time.RFC3339),
	}
}

func newDevToTestAdapter(t *testing.T, srv *httptest.Server) *DevToAdapter {
	t.Helper()
	a := NewDevToAdapter(srv.URL, 365, 730, 5*time.Second, testLogger())
	a.now = func() time.Time { return devtoNow }
	return a
}

func TestDevToRecentTier(t *testing.T) {
	srv := devtoServer(t, map[string][]devtoArticle{
		"365": {
			devtoTestArticle("python generators explained", 50, 30*24*time.Hour),
			devtoTestArticle("python generators in practice", 25, 100*24*time.Hour),
		},
	})
	defer srv.Close()

	articles, tier, ok := newDevToTestAdapter(t, srv).Fetch(context.Background(), "Python Generators")
	if !ok {
		t.Fatal("expected ok")
	}
	if tier != DevToTierRecent {
		t.Fatalf("tier = %q, want recent", tier)
	}
	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}
}

func TestDevToWidensToExtendedTier(t *testing.T) {
	srv := devtoServer(t, map[string][]devtoArticle{
		"365": {
			devtoTestArticle("python generators explained", 50, 30*24*time.Hour),
		},
		"730": {
			devtoTestArticle("python generators explained", 50, 30*24*time.Hour),
			devtoTestArticle("python generators the long way", 40, 500*24*time.Hour),
			devtoTestArticle("python generators revisited", 30, 600*24*time.Hour),
		},
	})
	defer srv.Close()

	articles, tier, ok := newDevToTestAdapter(t, srv).Fetch(context.Background(), "Python Generators")
	if !ok {
		t.Fatal("expected ok")
	}
	if tier != DevToTierExtended {
		t.Fatalf("tier = %q, want extended", tier)
	}
	if len(articles) != 3 {
		t.Fatalf("got %d articles, want 3", len(articles))
	}
}

func TestDevToFiltersReactionsTopicAndWindow(t *testing.T) {
	srv := devtoServer(t, map[string][]devtoArticle{
		"365": {
			devtoTestArticle("python generators explained", 50, 30*24*time.Hour),
			devtoTestArticle("python generators low signal", 5, 30*24*time.Hour),   // reactions < 20
			devtoTestArticle("rust ownership in depth", 80, 30*24*time.Hour),       // off topic
			devtoTestArticle("python generators archive", 60, 400*24*time.Hour),    // outside window
			devtoTestArticle("python generators the sequel", 22, 200*24*time.Hour),
			devtoTestArticle("python generators fresh", 40, 10*24*time.Hour),
		},
	})
	defer srv.Close()

	articles, tier, ok := newDevToTestAdapter(t, srv).Fetch(context.Background(), "Python Generators")
	if !ok {
		t.Fatal("expected ok")
	}
	if tier != DevToTierRecent {
		t.Fatalf("tier = %q, want recent", tier)
	}
	if len(articles) != 3 {
		t.Fatalf("got %d articles, want 3 after filtering", len(articles))
	}
	for _, art := range articles {
		if art.Reactions < 20 {
			t.Fatalf("kept article below reaction threshold: %+v", art)
		}
		if art.PublishedAt.Before(devtoNow.AddDate(0, 0, -365)) {
			t.Fatalf("kept article outside window: %+v", art)
		}
	}
}

func TestDevToCapsAtFiveArticles(t *testing.T) {
	var many []devtoArticle
	for i := 0; i < 10; i++ {
		many = append(many, devtoTestArticle("python generators explained", 30+i, time.Duration(i+1)*24*time.Hour))
	}
	srv := devtoServer(t, map[string][]devtoArticle{"365": many})
	defer srv.Close()

	articles, _, ok := newDevToTestAdapter(t, srv).Fetch(context.Background(), "Python Generators")
	if !ok {
		t.Fatal("expected ok")
	}
	if len(articles) != 5 {
		t.Fatalf("got %d articles, want cap of 5", len(articles))
	}
}

func TestDevToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	articles, tier, ok := newDevToTestAdapter(t, srv).Fetch(context.Background(), "Python Generators")
	if ok {
		t.Fatal("expected ok=false on upstream failure")
	}
	if tier != DevToTierNone {
		t.Fatalf("tier = %q, want none", tier)
	}
	if articles != nil {
		t.Fatalf("expected nil articles, got %v", articles)
	}
}

func TestDevToEmptyBothWindowsStillHealthy(t *testing.T) {
	srv := devtoServer(t, map[string][]devtoArticle{})
	defer srv.Close()

	articles, tier, ok := newDevToTestAdapter(t, srv).Fetch(context.Background(), "Python Generators")
	if !ok {
		t.Fatal("an empty healthy source is still ok")
	}
	if tier != DevToTierNone {
		t.Fatalf("tier = %q, want none", tier)
	}
	if len(articles) != 0 {
		t.Fatalf("got %d articles, want 0", len(articles))
	}
}
