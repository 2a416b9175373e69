package lessongen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/pathwise/pathwise-backend/internal/ai"
	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/repos"
	"github.com/pathwise/pathwise-backend/internal/research"
	"github.com/pathwise/pathwise-backend/internal/types"
)

const lessonMaxTokens = 8000

// Researcher, TopicClassifier and Generator are the narrow views of the
// research engine, classifier and AI orchestrator the assembler needs;
// tests substitute stubs.
type Researcher interface {
	Research(ctx context.Context, topic, category, language string) *types.ResearchBundle
}

type TopicClassifier interface {
	Classify(ctx context.Context, topic string) research.Classification
}

type Generator interface {
	Generate(ctx context.Context, req ai.GenerateRequest) (ai.GenerateResult, string, error)
	ModelFor(provider string) string
}

type componentCall struct {
	Component    string `json:"component"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	ElapsedMS    int64  `json:"elapsed_ms"`
	Regenerated  bool   `json:"regenerated,omitempty"`
}

type generationMetadata struct {
	Mode          string          `json:"mode"` // research|ai_only|cache_hit
	Calls         []componentCall `json:"calls,omitempty"`
	ResearchMS    int64           `json:"research_ms,omitempty"`
	CacheSourceID string          `json:"cache_source_id,omitempty"`
	SchemaVersion string          `json:"schema_version"`
}

type sourceAttribution struct {
	Status    types.ResearchSourceStatus `json:"status"`
	CitedURLs []string                   `json:"cited_urls,omitempty"`
	Summary   string                     `json:"summary"`
}

// Assembler builds one lesson end to end: cache check, single-flight,
// classification, research, per-component AI calls, parse/validate,
// atomic persist. A lesson is all-or-nothing; partial component success
// is a lesson failure.
type Assembler struct {
	lessons       repos.LessonContentRepo
	classifier    TopicClassifier
	researcher    Researcher
	gen           Generator
	prompts       *PromptBuilder
	parser        *Parser
	flight        *Flight
	schemaVersion string
	log           *logger.Logger
}

func NewAssembler(lessons repos.LessonContentRepo, classifier TopicClassifier, researcher Researcher, gen Generator, schemaVersion string, baseLog *logger.Logger) *Assembler {
	return &Assembler{
		lessons:       lessons,
		classifier:    classifier,
		researcher:    researcher,
		gen:           gen,
		prompts:       NewPromptBuilder(),
		parser:        NewParser(),
		flight:        NewFlight(),
		schemaVersion: schemaVersion,
		log:           baseLog.With("component", "LessonAssembler"),
	}
}

func (a *Assembler) AssembleLesson(ctx context.Context, moduleID uuid.UUID, req types.LessonRequest) (*types.LessonContent, error) {
	log := a.log.With("module_id", moduleID.String(), "lesson_number", req.LessonNumber)
	hash := Fingerprint(req.StepTitle, req.LearningStyle, req.Profile.SkillLevel, req.Profile.Role, req.Industry, a.schemaVersion)

	for {
		// Idempotent resume: a lesson already persisted for this slot wins
		// outright, approved or not.
		if existing, err := a.lessons.GetByModuleAndNumber(ctx, nil, moduleID, req.LessonNumber); err != nil {
			return nil, err
		} else if existing != nil {
			log.Info("Lesson slot already persisted, reusing", "reason", "resume")
			return existing, nil
		}
		// Community-approved content with the same fingerprint short-circuits
		// research and generation entirely.
		if approved, err := a.lessons.GetApprovedByContentHash(ctx, nil, hash); err != nil {
			return nil, err
		} else if approved != nil {
			log.Info("Cache hit on approved content", "content_hash", hash)
			return a.adoptCached(ctx, moduleID, req, hash, approved)
		}

		leader, wait, release := a.flight.Begin(hash)
		if leader {
			lesson, err := a.build(ctx, log, moduleID, req, hash)
			release()
			return lesson, err
		}
		log.Info("Awaiting in-flight build for same fingerprint", "content_hash", hash)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
			// Loop: re-check the store, and take the lead if the other
			// build failed without persisting.
		}
	}
}

// adoptCached denormalizes an approved lesson into this module's slot so
// module ownership and the (module_id, lesson_number) index hold. No
// research and no AI calls happen on this path.
func (a *Assembler) adoptCached(ctx context.Context, moduleID uuid.UUID, req types.LessonRequest, hash string, src *types.LessonContent) (*types.LessonContent, error) {
	meta, err := json.Marshal(generationMetadata{
		Mode:          "cache_hit",
		CacheSourceID: src.ID.String(),
		SchemaVersion: a.schemaVersion,
	})
	if err != nil {
		return nil, err
	}
	now := time.Now()
	lesson := &types.LessonContent{
		ID:                 uuid.New(),
		ModuleID:           moduleID,
		LessonNumber:       req.LessonNumber,
		Title:              req.StepTitle,
		ContentHash:        hash,
		Components:         src.Components,
		SourceAttribution:  src.SourceAttribution,
		GenerationMetadata: datatypes.JSON(meta),
		AIModelUsed:        src.AIModelUsed,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := a.lessons.InsertWithCallLogs(ctx, lesson, nil); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (a *Assembler) build(ctx context.Context, log *logger.Logger, moduleID uuid.UUID, req types.LessonRequest, hash string) (*types.LessonContent, error) {
	classification := a.classifier.Classify(ctx, req.StepTitle)
	req.Category = classification.Category
	if req.Language == "" {
		req.Language = classification.Language
	}

	var bundle *types.ResearchBundle
	if req.EnableResearch {
		bundle = a.researcher.Research(ctx, req.StepTitle, req.Category, req.Language)
	}

	complexity := research.ComplexityForDifficulty(req.Difficulty)
	structure := research.CalculateStructure(complexity, req.Profile.SkillLevel, req.Profile.Role, req.LearningStyle, req.Profile.TimeCommitment)

	doc := &types.LessonDocumentV1{Version: 1, Structure: structure}
	var calls []componentCall
	var callLogs []*types.AICallLog
	modelUsed := ""

	for _, component := range ComponentsForStyle(req.LearningStyle) {
		call, err := a.generateComponent(ctx, log, doc, component, req, structure, bundle)
		if err != nil {
			return nil, fmt.Errorf("lesson %d failed: %w", req.LessonNumber, err)
		}
		calls = append(calls, call)
		callLogs = append(callLogs, &types.AICallLog{
			Component:    call.Component,
			Provider:     call.Provider,
			Model:        call.Model,
			InputTokens:  call.InputTokens,
			OutputTokens: call.OutputTokens,
			ElapsedMS:    call.ElapsedMS,
		})
		modelUsed = call.Model
	}

	componentsJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	mode := "research"
	attribution := sourceAttribution{Summary: "research disabled"}
	var researchMS int64
	if bundle != nil {
		attribution = sourceAttribution{
			Status:    bundle.SourceStatus,
			CitedURLs: citedURLs(bundle),
			Summary:   bundle.Summary,
		}
		researchMS = bundle.ElapsedMS
		if bundle.Summary == "all sources unavailable" {
			mode = "ai_only"
		}
	} else {
		mode = "ai_only"
	}
	attributionJSON, err := json.Marshal(attribution)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(generationMetadata{
		Mode:          mode,
		Calls:         calls,
		ResearchMS:    researchMS,
		SchemaVersion: a.schemaVersion,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	lesson := &types.LessonContent{
		ID:                 uuid.New(),
		ModuleID:           moduleID,
		LessonNumber:       req.LessonNumber,
		Title:              req.StepTitle,
		ContentHash:        hash,
		Components:         datatypes.JSON(componentsJSON),
		SourceAttribution:  datatypes.JSON(attributionJSON),
		GenerationMetadata: datatypes.JSON(metaJSON),
		AIModelUsed:        modelUsed,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := a.lessons.InsertWithCallLogs(ctx, lesson, callLogs); err != nil {
		return nil, err
	}
	log.Info("Lesson persisted", "content_hash", hash, "mode", mode, "components", len(calls))
	return lesson, nil
}

// generateComponent makes the orchestrated AI call for one component and
// validates the response. A parse failure earns exactly one regeneration
// carrying the validator error; the second failure is final.
func (a *Assembler) generateComponent(ctx context.Context, log *logger.Logger, doc *types.LessonDocumentV1, component string, req types.LessonRequest, structure types.StructurePlan, bundle *types.ResearchBundle) (componentCall, error) {
	system := a.prompts.System(component, req)
	previousError := ""
	var call componentCall

	for attempt := 0; attempt < 2; attempt++ {
		user := a.prompts.User(component, req, structure, bundle, previousError)
		started := time.Now()
		res, provider, err := a.gen.Generate(ctx, ai.GenerateRequest{
			System:    system,
			User:      user,
			JSONMode:  true,
			MaxTokens: lessonMaxTokens,
		})
		if err != nil {
			return componentCall{}, err
		}
		call = componentCall{
			Component:    component,
			Provider:     provider,
			Model:        a.gen.ModelFor(provider),
			InputTokens:  res.InputTokens,
			OutputTokens: res.OutputTokens,
			ElapsedMS:    time.Since(started).Milliseconds(),
			Regenerated:  attempt > 0,
		}

		parseErr := a.parser.ParseComponent(doc, component, res.Text, structure.ContentDepth, req.Profile.TimeCommitment)
		if parseErr == nil {
			return call, nil
		}
		var pe *ParseError
		if !errors.As(parseErr, &pe) {
			return componentCall{}, parseErr
		}
		log.Warn("Component parse failure",
			"component", component,
			"provider", provider,
			"reason", pe.Reason,
			"attempt", attempt+1,
		)
		previousError = pe.Reason
	}
	return componentCall{}, &ParseError{Component: component, Reason: "failed validation after regeneration: " + previousError}
}

func citedURLs(bundle *types.ResearchBundle) []string {
	var urls []string
	if doc := bundle.Sources.OfficialDoc; doc != nil {
		urls = append(urls, doc.URL)
	}
	for _, item := range bundle.Sources.SOAnswers {
		urls = append(urls, item.URL)
	}
	for _, item := range bundle.Sources.CodeExamples {
		urls = append(urls, item.URL)
	}
	for _, item := range bundle.Sources.Articles {
		urls = append(urls, item.URL)
	}
	if video := bundle.Sources.Video; video != nil {
		urls = append(urls, video.URL)
	}
	return urls
}
