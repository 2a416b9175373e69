package research

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLogScale(t *testing.T) {
	tests := []struct {
		n    float64
		want float64
	}{
		{0, 0},
		{1, 0},
		{10, 1.0 / 7},
		{10000000, 1},  // 10^7 saturates
		{100000000, 1}, // beyond saturation stays clamped
	}
	for _, tt := range tests {
		if got := logScale(tt.n, 7); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("logScale(%v) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestEngagementScore(t *testing.T) {
	if got := engagementScore(0, 10, 10); got != 0 {
		t.Fatalf("zero views should score 0, got %v", got)
	}
	// 2.5% engagement: half of the 5% saturation point.
	if got := engagementScore(1000, 20, 5); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("engagementScore = %v, want 0.5", got)
	}
	if got := engagementScore(100, 50, 50); got != 1 {
		t.Fatalf("engagement should clamp at 1, got %v", got)
	}
}

func TestRelevanceScore(t *testing.T) {
	terms := topicTerms("python generators explained")
	if got := relevanceScore("Python Generators tutorial", terms); math.Abs(got-2.0/3) > 1e-9 {
		t.Fatalf("relevanceScore = %v, want 2/3", got)
	}
	if got := relevanceScore("unrelated video", terms); got != 0 {
		t.Fatalf("relevanceScore = %v, want 0", got)
	}
	if got := relevanceScore("anything", nil); got != 0.5 {
		t.Fatalf("no terms should score neutral 0.5, got %v", got)
	}
}

func TestRecencyScoreWindow(t *testing.T) {
	month := 30 * 24 * time.Hour
	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"brand new", 0, 0.5},
		{"three months", 3 * month, 0.75},
		{"six months", 6 * month, 1.0},
		{"two years", 24 * month, 1.0},
		{"three years", 36 * month, 1.0},
		{"54 months decaying", 54 * month, 0.5},
		{"beyond six years", 80 * month, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recencyScore(tt.age); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("recencyScore(%v) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func ytServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/search"):
			_, _ = w.Write([]byte(`{"items": [
				{"id": {"videoId": "vid-popular"}},
				{"id": {"videoId": "vid-obscure"}}
			]}`))
		case strings.HasPrefix(r.URL.Path, "/videos"):
			_, _ = w.Write([]byte(`{"items": [
				{"id": "vid-popular", "snippet": {"title": "Python Generators explained", "description": "deep dive", "channelId": "ch-big", "channelTitle": "BigChannel", "publishedAt": "2024-06-01T00:00:00Z"}, "statistics": {"viewCount": "2500000", "likeCount": "80000", "commentCount": "4000"}},
				{"id": "vid-obscure", "snippet": {"title": "misc clip", "description": "", "channelId": "ch-small", "channelTitle": "SmallChannel", "publishedAt": "2017-01-01T00:00:00Z"}, "statistics": {"viewCount": "300", "likeCount": "2", "commentCount": "0"}}
			]}`))
		case strings.HasPrefix(r.URL.Path, "/channels"):
			_, _ = w.Write([]byte(`{"items": [
				{"id": "ch-big", "statistics": {"subscriberCount": "1500000"}},
				{"id": "ch-small", "statistics": {"subscriberCount": "40"}}
			]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestYouTubeFetchPicksHighestQuality(t *testing.T) {
	srv := ytServer(t)
	defer srv.Close()

	a := NewYouTubeAdapter("test-key", srv.URL, srv.URL, 5*time.Second, nil, testLogger())
	a.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	video, source, ok := a.Fetch(context.Background(), "Python Generators")
	if !ok {
		t.Fatal("expected ok")
	}
	if source != VideoSourcePrimary {
		t.Fatalf("source = %q, want primary", source)
	}
	if video.URL != "https://www.youtube.com/watch?v=vid-popular" {
		t.Fatalf("picked %q", video.URL)
	}
	if video.QualityScore <= 0 || video.QualityScore > 1 {
		t.Fatalf("quality score out of range: %v", video.QualityScore)
	}
}

func TestYouTubeFallsBackToAlternatePlatform(t *testing.T) {
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"list": [
			{"title": "Generators course", "url": "https://www.dailymotion.com/video/x1", "owner.screenname": "educhan", "views_total": 120000, "created_time": 1700000000}
		]}`))
	}))
	defer fallback.Close()
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden) // quota exhausted
	}))
	defer primary.Close()

	a := NewYouTubeAdapter("test-key", primary.URL, fallback.URL, 5*time.Second, nil, testLogger())
	video, source, ok := a.Fetch(context.Background(), "Python Generators")
	if !ok {
		t.Fatal("expected ok via fallback")
	}
	if source != VideoSourceFallback {
		t.Fatalf("source = %q, want fallback", source)
	}
	if video.URL != "https://www.dailymotion.com/video/x1" {
		t.Fatalf("picked %q", video.URL)
	}
	if video.Transcript != "" {
		t.Fatal("alternate platform videos carry no transcript")
	}
}

func TestYouTubeBothPlatformsDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	a := NewYouTubeAdapter("test-key", down.URL, down.URL, 5*time.Second, nil, testLogger())
	video, source, ok := a.Fetch(context.Background(), "Python Generators")
	if ok {
		t.Fatal("expected ok=false with both platforms down")
	}
	if source != VideoSourceNone || video != nil {
		t.Fatalf("got source=%q video=%v", source, video)
	}
}
