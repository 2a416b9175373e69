package research

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/types"
)

const docsExcerptBudget = 2000

// Official documentation index pages per category. Fixed table; the docs
// adapter never crawls beyond one index and one section page.
var docsBaseURLs = map[string]string{
	"python":              "https://docs.python.org/3/tutorial/index.html",
	"javascript":          "https://developer.mozilla.org/en-US/docs/Web/JavaScript/Guide",
	"web_frontend":        "https://developer.mozilla.org/en-US/docs/Learn",
	"web_backend":         "https://developer.mozilla.org/en-US/docs/Learn/Server-side",
	"data_science":        "https://pandas.pydata.org/docs/user_guide/index.html",
	"machine_learning":    "https://scikit-learn.org/stable/user_guide.html",
	"devops":              "https://docs.docker.com/get-started/",
	"databases":           "https://www.postgresql.org/docs/current/tutorial.html",
	"cloud":               "https://docs.aws.amazon.com/index.html",
	"mobile":              "https://developer.android.com/guide",
	"security":            "https://owasp.org/www-project-top-ten/",
	"general_programming": "https://devdocs.io/",
}

type DocsAdapter struct {
	httpClient *http.Client
	timeout    time.Duration
	log        *logger.Logger

	// baseOverride redirects every category to one index URL (tests).
	baseOverride string
}

func NewDocsAdapter(timeout time.Duration, baseLog *logger.Logger) *DocsAdapter {
	return &DocsAdapter{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		log:        baseLog.With("adapter", "official_docs"),
	}
}

var (
	anchorRe  = regexp.MustCompile(`(?is)<a[^>]+href="([^"#]+)"[^>]*>(.*?)</a>`)
	headingRe = regexp.MustCompile(`(?is)<h[23][^>]*>(.*?)</h[23]>`)
	tagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// Fetch loads the category's index page, picks the link whose title best
// matches the topic (case-insensitive substring first, longest shared
// prefix second), then extracts an excerpt from the linked section.
func (a *DocsAdapter) Fetch(ctx context.Context, topic, category, language string) (*types.OfficialDoc, bool) {
	base, ok := docsBaseURLs[category]
	if !ok {
		base = docsBaseURLs["general_programming"]
	}
	if a.baseOverride != "" {
		base = a.baseOverride
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	index, err := a.get(ctx, base)
	if err != nil {
		a.log.Warn("Docs fetch failed", "source", "official_docs", "reason", err.Error())
		return nil, false
	}

	title, href := bestDocLink(index, base, topic)
	pageURL := base
	page := index
	if href != "" {
		if body, err := a.get(ctx, href); err == nil {
			pageURL = href
			page = body
		}
	}

	excerpt := extractExcerpt(page, topic)
	if excerpt == "" {
		a.log.Warn("Docs fetch found no relevant excerpt", "source", "official_docs", "reason", "no section matched topic")
		return nil, false
	}
	if title == "" {
		title = topic
	}
	return &types.OfficialDoc{
		Title:       title,
		URL:         pageURL,
		BodyExcerpt: excerpt,
		Sections:    extractHeadings(page),
		FetchedAt:   time.Now(),
	}, true
}

func (a *DocsAdapter) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "pathwise-research/1.0")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &adapterHTTPError{StatusCode: resp.StatusCode, URL: url}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func bestDocLink(indexHTML, baseURL, topic string) (string, string) {
	topicLower := strings.ToLower(topic)
	type link struct{ title, href string }
	var links []link
	for _, m := range anchorRe.FindAllStringSubmatch(indexHTML, 400) {
		title := cleanHTMLText(m[2])
		if title == "" {
			continue
		}
		links = append(links, link{title: title, href: resolveHref(baseURL, m[1])})
	}
	// Substring match wins outright.
	for _, l := range links {
		if strings.Contains(strings.ToLower(l.title), topicLower) ||
			strings.Contains(topicLower, strings.ToLower(l.title)) {
			return l.title, l.href
		}
	}
	// Otherwise the longest shared prefix.
	best, bestLen := link{}, 0
	for _, l := range links {
		if n := commonPrefixLen(strings.ToLower(l.title), topicLower); n > bestLen {
			best, bestLen = l, n
		}
	}
	if bestLen >= 4 {
		return best.title, best.href
	}
	return "", ""
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func resolveHref(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	i := strings.LastIndex(base, "/")
	if i < 0 {
		return href
	}
	return base[:i+1] + strings.TrimPrefix(href, "./")
}

func extractExcerpt(html, topic string) string {
	text := cleanHTMLText(html)
	if text == "" {
		return ""
	}
	topicLower := strings.ToLower(topic)
	idx := strings.Index(strings.ToLower(text), topicLower)
	if idx < 0 {
		// Fall back to any significant topic word.
		for _, w := range strings.Fields(topicLower) {
			if len(w) < 4 {
				continue
			}
			if i := strings.Index(strings.ToLower(text), w); i >= 0 {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return ""
	}
	start := idx - 200
	if start < 0 {
		start = 0
	}
	end := start + docsExcerptBudget
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

func extractHeadings(html string) []string {
	var out []string
	for _, m := range headingRe.FindAllStringSubmatch(html, 20) {
		if h := cleanHTMLText(m[1]); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func cleanHTMLText(html string) string {
	text := tagRe.ReplaceAllString(html, " ")
	text = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ").Replace(text)
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
