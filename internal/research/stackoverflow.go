package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/types"
)

const soMinScore = 5

// StackOverflowAdapter fetches highly-voted answered questions. The
// upstream search API cannot filter on score + accepted in one query, so
// filtering and selection happen after the fetch.
type StackOverflowAdapter struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	log        *logger.Logger
}

func NewStackOverflowAdapter(baseURL string, timeout time.Duration, baseLog *logger.Logger) *StackOverflowAdapter {
	if baseURL == "" {
		baseURL = "https://api.stackexchange.com/2.3"
	}
	return &StackOverflowAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		log:        baseLog.With("adapter", "stackoverflow"),
	}
}

type soSearchResponse struct {
	Items []struct {
		Title            string `json:"title"`
		Score            int    `json:"score"`
		ViewCount        int    `json:"view_count"`
		AcceptedAnswerID int64  `json:"accepted_answer_id"`
		Link             string `json:"link"`
	} `json:"items"`
}

type soAnswersResponse struct {
	Items []struct {
		AnswerID int64  `json:"answer_id"`
		Body     string `json:"body"`
	} `json:"items"`
}

// Fetch returns up to count items. count is the compensated target; when
// the source has fewer qualifying questions the shorter list is returned
// as-is, never padded.
func (a *StackOverflowAdapter) Fetch(ctx context.Context, topic string, count int) ([]types.QAAnswer, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("order", "desc")
	q.Set("sort", "votes")
	q.Set("q", topic)
	q.Set("site", "stackoverflow")
	q.Set("pagesize", "30")
	searchURL := a.baseURL + "/search/advanced?" + q.Encode()

	var search soSearchResponse
	if err := a.getJSON(ctx, searchURL, &search); err != nil {
		a.log.Warn("Q&A search failed", "source", "stackoverflow", "reason", err.Error())
		return nil, false
	}

	type candidate struct {
		title, link      string
		score, viewCount int
		answerID         int64
	}
	var candidates []candidate
	for _, item := range search.Items {
		if item.Score < soMinScore || item.AcceptedAnswerID == 0 {
			continue
		}
		candidates = append(candidates, candidate{
			title:     item.Title,
			link:      item.Link,
			score:     item.Score,
			viewCount: item.ViewCount,
			answerID:  item.AcceptedAnswerID,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	if len(candidates) == 0 {
		// An empty result from a healthy source is still ok=true; the
		// engine distinguishes unavailable from unhelpful.
		return []types.QAAnswer{}, true
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, strconv.FormatInt(c.answerID, 10))
	}
	aq := url.Values{}
	aq.Set("site", "stackoverflow")
	aq.Set("filter", "withbody")
	answersURL := fmt.Sprintf("%s/answers/%s?%s", a.baseURL, strings.Join(ids, ";"), aq.Encode())

	var answers soAnswersResponse
	if err := a.getJSON(ctx, answersURL, &answers); err != nil {
		a.log.Warn("Q&A answer fetch failed", "source", "stackoverflow", "reason", err.Error())
		return nil, false
	}
	bodies := make(map[int64]string, len(answers.Items))
	for _, item := range answers.Items {
		bodies[item.AnswerID] = cleanHTMLText(item.Body)
	}

	now := time.Now()
	out := make([]types.QAAnswer, 0, len(candidates))
	for _, c := range candidates {
		body, ok := bodies[c.answerID]
		if !ok || body == "" {
			continue
		}
		out = append(out, types.QAAnswer{
			QuestionTitle:      cleanHTMLText(c.title),
			Score:              c.score,
			AcceptedAnswerBody: body,
			ViewCount:          c.viewCount,
			URL:                c.link,
			FetchedAt:          now,
		})
	}
	return out, true
}

func (a *StackOverflowAdapter) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &adapterHTTPError{StatusCode: resp.StatusCode, URL: u}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
