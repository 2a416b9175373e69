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
	ghMinStars    = 100
	ghMaxExamples = 5
)

// Search-language aliases: the classifier's language tags do not always
// match what the code-search API indexes.
var ghLanguageAliases = map[string]string{
	"jsx":        "javascript",
	"tsx":        "typescript",
	"dockerfile": "dockerfile",
	"cpp":        "c++",
	"golang":     "go",
	"yaml":       "yaml",
	"hcl":        "hcl",
}

type GitHubAdapter struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
	log        *logger.Logger
}

func NewGitHubAdapter(baseURL, token string, timeout time.Duration, baseLog *logger.Logger) *GitHubAdapter {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &GitHubAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		log:        baseLog.With("adapter", "github"),
	}
}

type ghSearchResponse struct {
	Items []struct {
		FullName    string `json:"full_name"`
		Description string `json:"description"`
		Stars       int    `json:"stargazers_count"`
		HTMLURL     string `json:"html_url"`
		Language    string `json:"language"`
	} `json:"items"`
}

func (a *GitHubAdapter) Fetch(ctx context.Context, topic, language string) ([]types.CodeExample, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	query := fmt.Sprintf("%s stars:>=%d", topic, ghMinStars)
	if lang := mapGHLanguage(language); lang != "" {
		query += " language:" + lang
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "stars")
	q.Set("order", "desc")
	q.Set("per_page", "10")
	searchURL := a.baseURL + "/search/repositories?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		a.log.Warn("Code search failed", "source", "github", "reason", err.Error())
		return nil, false
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.log.Warn("Code search failed", "source", "github", "reason", err.Error())
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		herr := &adapterHTTPError{StatusCode: resp.StatusCode, URL: searchURL}
		a.log.Warn("Code search failed", "source", "github", "reason", herr.Error())
		return nil, false
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		a.log.Warn("Code search failed", "source", "github", "reason", err.Error())
		return nil, false
	}
	var parsed ghSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		a.log.Warn("Code search failed", "source", "github", "reason", err.Error())
		return nil, false
	}

	now := time.Now()
	out := make([]types.CodeExample, 0, ghMaxExamples)
	for _, item := range parsed.Items {
		if item.Stars < ghMinStars {
			continue
		}
		out = append(out, types.CodeExample{
			Repo:      item.FullName,
			Path:      "",
			Snippet:   item.Description,
			Stars:     item.Stars,
			URL:       item.HTMLURL,
			FetchedAt: now,
		})
		if len(out) == ghMaxExamples {
			break
		}
	}
	return out, true
}

func mapGHLanguage(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		return ""
	}
	if alias, ok := ghLanguageAliases[lang]; ok {
		return alias
	}
	return lang
}
