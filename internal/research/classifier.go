package research

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pathwise/pathwise-backend/internal/ai"
	"github.com/pathwise/pathwise-backend/internal/logger"
)

// Categories the classifier may return. The docs adapter keys its base-URL
// table on these values.
var Categories = []string{
	"python",
	"javascript",
	"web_frontend",
	"web_backend",
	"data_science",
	"machine_learning",
	"devops",
	"databases",
	"cloud",
	"mobile",
	"security",
	"general_programming",
}

type Classification struct {
	Category   string  `json:"category"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"` // ai|keyword|cache
}

// Generator is the slice of the orchestrator the classifier needs.
type Generator interface {
	Generate(ctx context.Context, req ai.GenerateRequest) (ai.GenerateResult, string, error)
}

type Classifier struct {
	gen   Generator
	cache *lru.Cache[string, Classification]
	log   *logger.Logger
}

func NewClassifier(gen Generator, baseLog *logger.Logger) (*Classifier, error) {
	cache, err := lru.New[string, Classification](1024)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		gen:   gen,
		cache: cache,
		log:   baseLog.With("component", "TopicClassifier"),
	}, nil
}

// Classify maps a free-form lesson title to (category, language?). AI first,
// keyword table when the AI path is down; repeat lookups short-circuit
// through the LRU.
func (c *Classifier) Classify(ctx context.Context, topic string) Classification {
	key := normalizeTopic(topic)
	if cached, ok := c.cache.Get(key); ok {
		cached.Source = "cache"
		return cached
	}

	result, err := c.classifyAI(ctx, topic)
	if err != nil {
		c.log.Warn("AI classification failed, using keyword fallback", "topic", topic, "reason", err.Error())
		result = classifyKeyword(key)
	}
	c.cache.Add(key, result)
	return result
}

const classifierSystem = `You classify lesson topics for a learning platform. ` +
	`Respond with strict JSON: {"category": "<one of the allowed categories>", "language": "<programming language or empty>", "confidence": <0..1>}. No prose.`

func (c *Classifier) classifyAI(ctx context.Context, topic string) (Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user := "Allowed categories: " + strings.Join(Categories, ", ") + "\nTopic: " + topic
	res, _, err := c.gen.Generate(ctx, ai.GenerateRequest{
		System:    classifierSystem,
		User:      user,
		JSONMode:  true,
		MaxTokens: 200,
	})
	if err != nil {
		return Classification{}, err
	}
	var parsed Classification
	if err := json.Unmarshal([]byte(ExtractJSONObject(res.Text)), &parsed); err != nil {
		return Classification{}, err
	}
	parsed.Category = strings.TrimSpace(strings.ToLower(parsed.Category))
	if !validCategory(parsed.Category) {
		parsed.Category = classifyKeyword(normalizeTopic(topic)).Category
	}
	if parsed.Confidence <= 0 || parsed.Confidence > 1 {
		parsed.Confidence = 0.9
	}
	parsed.Source = "ai"
	return parsed, nil
}

func validCategory(cat string) bool {
	for _, c := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

type keywordRule struct {
	keyword  string
	category string
	language string
}

// Ordered: more specific rules first.
var keywordRules = []keywordRule{
	{"react", "web_frontend", "javascript"},
	{"vue", "web_frontend", "javascript"},
	{"angular", "web_frontend", "typescript"},
	{"css", "web_frontend", ""},
	{"html", "web_frontend", ""},
	{"typescript", "javascript", "typescript"},
	{"javascript", "javascript", "javascript"},
	{"node", "web_backend", "javascript"},
	{"django", "web_backend", "python"},
	{"flask", "web_backend", "python"},
	{"pandas", "data_science", "python"},
	{"numpy", "data_science", "python"},
	{"machine learning", "machine_learning", "python"},
	{"neural network", "machine_learning", "python"},
	{"deep learning", "machine_learning", "python"},
	{"python", "python", "python"},
	{"docker", "devops", "dockerfile"},
	{"kubernetes", "devops", "yaml"},
	{"ci/cd", "devops", ""},
	{"terraform", "devops", "hcl"},
	{"sql", "databases", "sql"},
	{"postgres", "databases", "sql"},
	{"mongodb", "databases", ""},
	{"redis", "databases", ""},
	{"aws", "cloud", ""},
	{"azure", "cloud", ""},
	{"gcp", "cloud", ""},
	{"android", "mobile", "kotlin"},
	{"ios", "mobile", "swift"},
	{"swift", "mobile", "swift"},
	{"flutter", "mobile", "dart"},
	{"security", "security", ""},
	{"cryptography", "security", ""},
	{"authentication", "security", ""},
	{"go ", "general_programming", "go"},
	{"golang", "general_programming", "go"},
	{"rust", "general_programming", "rust"},
	{"java", "general_programming", "java"},
	{"c++", "general_programming", "cpp"},
}

func classifyKeyword(normalizedTopic string) Classification {
	for _, rule := range keywordRules {
		if strings.Contains(normalizedTopic, rule.keyword) {
			return Classification{
				Category:   rule.category,
				Language:   rule.language,
				Confidence: 0.5,
				Source:     "keyword",
			}
		}
	}
	return Classification{
		Category:   "general_programming",
		Confidence: 0.2,
		Source:     "keyword",
	}
}

func normalizeTopic(topic string) string {
	return strings.Join(strings.Fields(strings.ToLower(topic)), " ")
}
