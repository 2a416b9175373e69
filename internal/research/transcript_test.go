package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAudioRequestURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		id   string
		want string
	}{
		{"placeholder", "https://extract.internal/audio/{video_id}.wav", "vid-1", "https://extract.internal/audio/vid-1.wav"},
		{"query appended", "https://extract.internal/audio", "vid-1", "https://extract.internal/audio?video_id=vid-1"},
		{"existing query", "https://extract.internal/audio?fmt=wav", "vid-1", "https://extract.internal/audio?fmt=wav&video_id=vid-1"},
		{"id escaped", "https://extract.internal/audio", "a b&c", "https://extract.internal/audio?video_id=a+b%26c"},
		{"stray verb is literal", "https://extract.internal/%s/audio", "vid-1", "https://extract.internal/%s/audio?video_id=vid-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := audioRequestURL(tt.base, tt.id); got != tt.want {
				t.Fatalf("audioRequestURL(%q, %q) = %q, want %q", tt.base, tt.id, got, tt.want)
			}
		})
	}
}

func TestTranscriptChainCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("v"); got != "vid-1" {
			t.Errorf("caption request for %q", got)
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><transcript>
			<text start="0">Hello</text>
			<text start="2">  world  </text>
			<text start="4"></text>
		</transcript>`))
	}))
	defer srv.Close()

	chain := NewTranscriptChain(srv.URL, "", nil, nil, testLogger())
	if got := chain.Resolve(context.Background(), "vid-1"); got != "Hello world" {
		t.Fatalf("transcript = %q, want %q", got, "Hello world")
	}
}

func TestTranscriptChainGivesUpQuietly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	// No captions, no speech tier configured: a transcript is an enrichment,
	// so the chain returns empty rather than failing.
	chain := NewTranscriptChain(srv.URL, "", nil, nil, testLogger())
	if got := chain.Resolve(context.Background(), "vid-1"); got != "" {
		t.Fatalf("transcript = %q, want empty", got)
	}

	if got := chain.Resolve(context.Background(), ""); got != "" {
		t.Fatalf("empty video id should resolve to empty, got %q", got)
	}
}
