package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/types"
)

// Narrow per-source interfaces so the engine is testable with stubs.
type DocsSource interface {
	Fetch(ctx context.Context, topic, category, language string) (*types.OfficialDoc, bool)
}

type QASource interface {
	Fetch(ctx context.Context, topic string, count int) ([]types.QAAnswer, bool)
}

type CodeSource interface {
	Fetch(ctx context.Context, topic, language string) ([]types.CodeExample, bool)
}

type ArticleSource interface {
	Fetch(ctx context.Context, topic string) ([]types.Article, string, bool)
}

type VideoSource interface {
	Fetch(ctx context.Context, topic string) (*types.Video, string, bool)
}

type EngineConfig struct {
	Deadline    time.Duration // total fan-out budget
	SOBaseCount int           // Q&A items before compensation
	SOMaxCount  int           // compensation cap
}

func (c *EngineConfig) applyDefaults() {
	if c.Deadline <= 0 {
		c.Deadline = 30 * time.Second
	}
	if c.SOBaseCount <= 0 {
		c.SOBaseCount = 5
	}
	if c.SOMaxCount <= 0 {
		c.SOMaxCount = 8
	}
}

// Engine fans out to the five source adapters, runs the two-pass Q&A
// compensation and aggregates everything into one ResearchBundle. It never
// returns an error: with every source down the bundle simply carries empty
// sources and the assembler proceeds AI-only.
type Engine struct {
	docs     DocsSource
	qa       QASource
	code     CodeSource
	articles ArticleSource
	video    VideoSource
	cfg      EngineConfig
	log      *logger.Logger
}

func NewEngine(docs DocsSource, qa QASource, code CodeSource, articles ArticleSource, video VideoSource, cfg EngineConfig, baseLog *logger.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		docs:     docs,
		qa:       qa,
		code:     code,
		articles: articles,
		video:    video,
		cfg:      cfg,
		log:      baseLog.With("component", "ResearchEngine"),
	}
}

func (e *Engine) Research(ctx context.Context, topic, category, language string) *types.ResearchBundle {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Deadline)
	defer cancel()

	bundle := &types.ResearchBundle{
		Topic:    topic,
		Category: category,
		Language: language,
		Sources: types.ResearchSources{
			SOAnswers:    []types.QAAnswer{},
			CodeExamples: []types.CodeExample{},
			Articles:     []types.Article{},
		},
		SourceStatus: types.ResearchSourceStatus{
			DevToTier:   DevToTierNone,
			VideoSource: VideoSourceNone,
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, ok := e.docs.Fetch(gctx, topic, category, language)
		bundle.Sources.OfficialDoc = doc
		bundle.SourceStatus.OfficialDocsOK = ok
		return nil
	})
	g.Go(func() error {
		items, ok := e.qa.Fetch(gctx, topic, e.cfg.SOBaseCount)
		if items != nil {
			bundle.Sources.SOAnswers = items
		}
		bundle.SourceStatus.StackOverflowOK = ok
		return nil
	})
	g.Go(func() error {
		items, ok := e.code.Fetch(gctx, topic, language)
		if items != nil {
			bundle.Sources.CodeExamples = items
		}
		bundle.SourceStatus.GitHubOK = ok
		return nil
	})
	g.Go(func() error {
		items, tier, ok := e.articles.Fetch(gctx, topic)
		if items != nil {
			bundle.Sources.Articles = items
		}
		bundle.SourceStatus.DevToTier = tier
		bundle.SourceStatus.DevToOK = ok
		return nil
	})
	g.Go(func() error {
		video, source, ok := e.video.Fetch(gctx, topic)
		bundle.Sources.Video = video
		bundle.SourceStatus.VideoSource = source
		bundle.SourceStatus.YouTubeOK = ok
		return nil
	})
	_ = g.Wait()

	e.compensate(ctx, topic, bundle)

	bundle.ElapsedMS = time.Since(start).Milliseconds()
	bundle.Summary = summarize(bundle)
	e.log.Info("Research complete",
		"topic", topic,
		"category", category,
		"elapsed_ms", bundle.ElapsedMS,
		"summary", bundle.Summary,
	)
	return bundle
}

// compensate trades Q&A depth for missing breadth: each unavailable
// non-Q&A, non-docs source raises the Q&A target, capped.
func (e *Engine) compensate(ctx context.Context, topic string, bundle *types.ResearchBundle) {
	status := bundle.SourceStatus
	missing := 0
	if !status.YouTubeOK {
		missing++
	}
	if !status.GitHubOK {
		missing++
	}
	if !status.DevToOK {
		missing++
	}
	target := e.cfg.SOBaseCount + missing
	if target > e.cfg.SOMaxCount {
		target = e.cfg.SOMaxCount
	}
	if missing == 0 || !status.StackOverflowOK || len(bundle.Sources.SOAnswers) >= target {
		return
	}

	e.log.Info("Compensating for missing sources with deeper Q&A",
		"topic", topic,
		"source", "stackoverflow",
		"reason", fmt.Sprintf("%d sources missing, target %d", missing, target),
	)
	extra, ok := e.qa.Fetch(ctx, topic, target)
	if !ok {
		return
	}
	seen := map[string]bool{}
	for _, item := range bundle.Sources.SOAnswers {
		seen[item.URL] = true
	}
	for _, item := range extra {
		if seen[item.URL] {
			continue
		}
		seen[item.URL] = true
		bundle.Sources.SOAnswers = append(bundle.Sources.SOAnswers, item)
		if len(bundle.Sources.SOAnswers) >= target {
			break
		}
	}
}

func summarize(bundle *types.ResearchBundle) string {
	status := bundle.SourceStatus
	if !status.OfficialDocsOK && !status.StackOverflowOK && !status.GitHubOK && !status.DevToOK && !status.YouTubeOK {
		return "all sources unavailable"
	}
	var parts []string
	if status.OfficialDocsOK {
		parts = append(parts, "official docs")
	}
	if status.StackOverflowOK {
		parts = append(parts, fmt.Sprintf("%d Q&A answers", len(bundle.Sources.SOAnswers)))
	}
	if status.GitHubOK {
		parts = append(parts, fmt.Sprintf("%d code examples", len(bundle.Sources.CodeExamples)))
	}
	if status.DevToOK {
		parts = append(parts, fmt.Sprintf("%d articles (%s)", len(bundle.Sources.Articles), status.DevToTier))
	}
	if status.YouTubeOK {
		parts = append(parts, "video ("+status.VideoSource+")")
	}
	summary := "sources: " + strings.Join(parts, ", ")

	var down []string
	if !status.OfficialDocsOK {
		down = append(down, "official docs")
	}
	if !status.StackOverflowOK {
		down = append(down, "stackoverflow")
	}
	if !status.GitHubOK {
		down = append(down, "github")
	}
	if !status.DevToOK {
		down = append(down, "devto")
	}
	if !status.YouTubeOK {
		down = append(down, "youtube")
	}
	if len(down) > 0 {
		summary += "; unavailable: " + strings.Join(down, ", ")
	}
	return summary
}
