package research

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/types"
)

// Video source branches recorded in source_status.video_source.
const (
	VideoSourcePrimary  = "primary"
	VideoSourceFallback = "fallback"
	VideoSourceNone     = "none"
)

// Quality score weights. Transcript relevance is approximated from the
// title and description at ranking time; fetching transcripts for every
// candidate would blow the adapter budget.
const (
	weightViews      = 0.30
	weightEngagement = 0.25
	weightAuthority  = 0.20
	weightRelevance  = 0.15
	weightRecency    = 0.10
)

type YouTubeAdapter struct {
	apiKey      string
	baseURL     string
	fallbackURL string
	httpClient  *http.Client
	timeout     time.Duration
	transcripts *TranscriptChain
	log         *logger.Logger
	now         func() time.Time
}

func NewYouTubeAdapter(apiKey, baseURL, fallbackURL string, timeout time.Duration, transcripts *TranscriptChain, baseLog *logger.Logger) *YouTubeAdapter {
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/youtube/v3"
	}
	if fallbackURL == "" {
		fallbackURL = "https://api.dailymotion.com"
	}
	return &YouTubeAdapter{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		fallbackURL: strings.TrimRight(fallbackURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		timeout:     timeout,
		transcripts: transcripts,
		log:         baseLog.With("adapter", "youtube"),
		now:         time.Now,
	}
}

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type ytVideosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type ytChannelsResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Fetch ranks primary-platform candidates by the 5-factor quality score,
// picks the winner and resolves its transcript through the fallback chain.
// If the primary platform is down entirely, one alternate platform is tried
// (no transcript there).
func (a *YouTubeAdapter) Fetch(ctx context.Context, topic string) (*types.Video, string, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	video, err := a.fetchPrimary(ctx, topic)
	if err == nil && video != nil {
		return video, VideoSourcePrimary, true
	}
	if err != nil {
		a.log.Warn("Primary video source failed", "source", "youtube", "reason", err.Error())
	}

	fallback, ferr := a.fetchFallback(ctx, topic)
	if ferr == nil && fallback != nil {
		return fallback, VideoSourceFallback, true
	}
	if ferr != nil {
		a.log.Warn("Fallback video source failed", "source", "youtube", "reason", ferr.Error())
	}
	return nil, VideoSourceNone, false
}

func (a *YouTubeAdapter) fetchPrimary(ctx context.Context, topic string) (*types.Video, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("q", topic+" tutorial")
	q.Set("type", "video")
	q.Set("maxResults", "10")
	q.Set("key", a.apiKey)

	var search ytSearchResponse
	if err := a.getJSON(ctx, a.baseURL+"/search?"+q.Encode(), &search); err != nil {
		return nil, err
	}
	if len(search.Items) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}

	vq := url.Values{}
	vq.Set("part", "snippet,statistics")
	vq.Set("id", strings.Join(ids, ","))
	vq.Set("key", a.apiKey)
	var videos ytVideosResponse
	if err := a.getJSON(ctx, a.baseURL+"/videos?"+vq.Encode(), &videos); err != nil {
		return nil, err
	}
	if len(videos.Items) == 0 {
		return nil, nil
	}

	channelIDs := map[string]bool{}
	for _, v := range videos.Items {
		channelIDs[v.Snippet.ChannelID] = true
	}
	subs := a.channelSubscribers(ctx, channelIDs)

	type scored struct {
		id, title, channelTitle string
		published               time.Time
		score                   float64
	}
	terms := topicTerms(topic)
	now := a.now()
	var candidates []scored
	for _, v := range videos.Items {
		views, _ := strconv.ParseFloat(v.Statistics.ViewCount, 64)
		likes, _ := strconv.ParseFloat(v.Statistics.LikeCount, 64)
		comments, _ := strconv.ParseFloat(v.Statistics.CommentCount, 64)
		published, _ := time.Parse(time.RFC3339, v.Snippet.PublishedAt)

		score := weightViews*logScale(views, 7) +
			weightEngagement*engagementScore(views, likes, comments) +
			weightAuthority*logScale(subs[v.Snippet.ChannelID], 7) +
			weightRelevance*relevanceScore(v.Snippet.Title+" "+v.Snippet.Description, terms) +
			weightRecency*recencyScore(now.Sub(published))
		candidates = append(candidates, scored{
			id:           v.ID,
			title:        v.Snippet.Title,
			channelTitle: v.Snippet.ChannelTitle,
			published:    published,
			score:        score,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	top := candidates[0]

	transcript := ""
	if a.transcripts != nil {
		transcript = a.transcripts.Resolve(ctx, top.id)
	}
	return &types.Video{
		Title:        top.title,
		ChannelTitle: top.channelTitle,
		URL:          "https://www.youtube.com/watch?v=" + top.id,
		Transcript:   transcript,
		QualityScore: top.score,
		PublishedAt:  top.published,
		FetchedAt:    now,
	}, nil
}

func (a *YouTubeAdapter) channelSubscribers(ctx context.Context, channelIDs map[string]bool) map[string]float64 {
	out := map[string]float64{}
	ids := make([]string, 0, len(channelIDs))
	for id := range channelIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return out
	}
	q := url.Values{}
	q.Set("part", "statistics")
	q.Set("id", strings.Join(ids, ","))
	q.Set("key", a.apiKey)
	var channels ytChannelsResponse
	if err := a.getJSON(ctx, a.baseURL+"/channels?"+q.Encode(), &channels); err != nil {
		// Authority falls to zero for all candidates equally; ranking
		// still works on the remaining factors.
		a.log.Debug("Channel statistics unavailable", "source", "youtube", "reason", err.Error())
		return out
	}
	for _, ch := range channels.Items {
		n, _ := strconv.ParseFloat(ch.Statistics.SubscriberCount, 64)
		out[ch.ID] = n
	}
	return out
}

type dmSearchResponse struct {
	List []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Owner       string `json:"owner.screenname"`
		ViewsTotal  int    `json:"views_total"`
		CreatedTime int64  `json:"created_time"`
	} `json:"list"`
}

func (a *YouTubeAdapter) fetchFallback(ctx context.Context, topic string) (*types.Video, error) {
	q := url.Values{}
	q.Set("search", topic+" tutorial")
	q.Set("fields", "title,url,owner.screenname,views_total,created_time")
	q.Set("limit", "5")
	q.Set("sort", "relevance")

	var parsed dmSearchResponse
	if err := a.getJSON(ctx, a.fallbackURL+"/videos?"+q.Encode(), &parsed); err != nil {
		return nil, err
	}
	if len(parsed.List) == 0 {
		return nil, nil
	}
	top := parsed.List[0]
	return &types.Video{
		Title:        top.Title,
		ChannelTitle: top.Owner,
		URL:          top.URL,
		QualityScore: logScale(float64(top.ViewsTotal), 7),
		PublishedAt:  time.Unix(top.CreatedTime, 0),
		FetchedAt:    a.now(),
	}, nil
}

func (a *YouTubeAdapter) getJSON(ctx context.Context, u string, out interface{}) error {
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

// logScale maps a count to [0,1] on a log10 scale; maxMagnitude 7 means
// 10M views/subscribers saturates the factor.
func logScale(n float64, maxMagnitude float64) float64 {
	if n <= 1 {
		return 0
	}
	v := math.Log10(n) / maxMagnitude
	if v > 1 {
		return 1
	}
	return v
}

func engagementScore(views, likes, comments float64) float64 {
	if views <= 0 {
		return 0
	}
	// 5% combined engagement saturates the factor.
	v := ((likes + comments) / views) / 0.05
	if v > 1 {
		return 1
	}
	return v
}

func relevanceScore(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 0.5
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// recencyScore peaks for videos aged 6-36 months: old enough to be vetted,
// new enough to not be stale.
func recencyScore(age time.Duration) float64 {
	months := age.Hours() / (24 * 30)
	switch {
	case months < 0:
		return 0
	case months < 6:
		return 0.5 + months/12 // ramps 0.5 -> 1.0
	case months <= 36:
		return 1.0
	case months <= 72:
		return 1.0 - (months-36)/36 // decays to 0 at 6 years
	default:
		return 0
	}
}
