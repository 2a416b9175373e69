package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/types"
)

const (
	devtoMinReactions = 20
	devtoMaxArticles  = 5
	devtoMinKeep      = 2
)

// Dev.to tiers recorded in source_status.devto_tier.
const (
	DevToTierRecent   = "recent"
	DevToTierExtended = "extended"
	DevToTierNone     = "none"
)

// DevToAdapter fetches community articles in two tiers: a recent window
// first, widened only when the recent window is too thin.
type DevToAdapter struct {
	baseURL            string
	primaryWindowDays  int
	fallbackWindowDays int
	httpClient         *http.Client
	timeout            time.Duration
	log                *logger.Logger
	now                func() time.Time
}

func NewDevToAdapter(baseURL string, primaryWindowDays, fallbackWindowDays int, timeout time.Duration, baseLog *logger.Logger) *DevToAdapter {
	if baseURL == "" {
		baseURL = "https://dev.to/api"
	}
	if primaryWindowDays <= 0 {
		primaryWindowDays = 365
	}
	if fallbackWindowDays <= 0 {
		fallbackWindowDays = 730
	}
	return &DevToAdapter{
		baseURL:            strings.TrimRight(baseURL, "/"),
		primaryWindowDays:  primaryWindowDays,
		fallbackWindowDays: fallbackWindowDays,
		httpClient:         &http.Client{Timeout: timeout},
		timeout:            timeout,
		log:                baseLog.With("adapter", "devto"),
		now:                time.Now,
	}
}

type devtoArticle struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	ReactionsCount int    `json:"public_reactions_count"`
	URL            string `json:"url"`
	PublishedAt    string `json:"published_at"`
}

// Fetch returns up to 5 articles and which tier they came from.
func (a *DevToAdapter) Fetch(ctx context.Context, topic string) ([]types.Article, string, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	recent, err := a.fetchWindow(ctx, topic, a.primaryWindowDays)
	if err != nil {
		a.log.Warn("Article fetch failed", "source", "devto", "reason", err.Error())
		return nil, DevToTierNone, false
	}
	if len(recent) >= devtoMinKeep {
		return recent, DevToTierRecent, true
	}

	extended, err := a.fetchWindow(ctx, topic, a.fallbackWindowDays)
	if err != nil {
		a.log.Warn("Article fallback fetch failed", "source", "devto", "reason", err.Error())
		if len(recent) > 0 {
			return recent, DevToTierRecent, true
		}
		return nil, DevToTierNone, false
	}
	if len(extended) > 0 {
		return extended, DevToTierExtended, true
	}
	if len(recent) > 0 {
		return recent, DevToTierRecent, true
	}
	return []types.Article{}, DevToTierNone, true
}

func (a *DevToAdapter) fetchWindow(ctx context.Context, topic string, windowDays int) ([]types.Article, error) {
	q := url.Values{}
	q.Set("per_page", "50")
	q.Set("top", fmt.Sprintf("%d", windowDays))
	u := a.baseURL + "/articles?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &adapterHTTPError{StatusCode: resp.StatusCode, URL: u}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var articles []devtoArticle
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, err
	}

	now := a.now()
	cutoff := now.AddDate(0, 0, -windowDays)
	terms := topicTerms(topic)
	out := make([]types.Article, 0, devtoMaxArticles)
	for _, art := range articles {
		if art.ReactionsCount < devtoMinReactions {
			continue
		}
		if !matchesTerms(art.Title+" "+art.Description, terms) {
			continue
		}
		published, perr := time.Parse(time.RFC3339, art.PublishedAt)
		if perr != nil || published.Before(cutoff) {
			continue
		}
		out = append(out, types.Article{
			Title:       art.Title,
			BodyExcerpt: art.Description,
			Reactions:   art.ReactionsCount,
			URL:         art.URL,
			PublishedAt: published,
			FetchedAt:   now,
		})
		if len(out) == devtoMaxArticles {
			break
		}
	}
	return out, nil
}

func topicTerms(topic string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(topic)) {
		if len(w) >= 4 {
			terms = append(terms, w)
		}
	}
	return terms
}

func matchesTerms(text string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
