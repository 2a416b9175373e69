package lessongen

import (
	"fmt"
	"strings"

	"github.com/pathwise/pathwise-backend/internal/types"
)

// Lesson components, generated one AI call each, in schema order.
const (
	ComponentIntroduction    = "introduction"
	ComponentReading         = "reading"
	ComponentVideoStudyGuide = "video_study_guide"
	ComponentExercises       = "exercises"
	ComponentSummary         = "summary"
	ComponentQuiz            = "quiz"
	ComponentDiagrams        = "diagrams"
)

// ComponentsForStyle returns the ordered component list for a learning
// style. Every lesson opens with an introduction.
func ComponentsForStyle(learningStyle string) []string {
	switch learningStyle {
	case "hands_on":
		return []string{ComponentIntroduction, ComponentExercises, ComponentSummary, ComponentQuiz, ComponentDiagrams}
	case "video":
		return []string{ComponentIntroduction, ComponentVideoStudyGuide, ComponentQuiz}
	case "reading":
		return []string{ComponentIntroduction, ComponentReading, ComponentDiagrams, ComponentQuiz}
	default: // mixed
		return []string{ComponentIntroduction, ComponentReading, ComponentVideoStudyGuide, ComponentExercises, ComponentSummary, ComponentQuiz, ComponentDiagrams}
	}
}

// Per-source truncation budgets for the research context block.
const (
	budgetDocExcerpt = 2000
	budgetQAAnswer   = 1200
	budgetCode       = 400
	budgetArticle    = 600
	budgetTranscript = 3000
)

var componentSchemas = map[string]string{
	ComponentIntroduction:    `{"introduction": "<2-4 paragraph introduction, markdown>"}`,
	ComponentReading:         `{"reading": "<long-form body text, markdown, with section headings>"}`,
	ComponentVideoStudyGuide: `{"video_study_guide": "<study guide keyed to the referenced video, markdown>"}`,
	ComponentExercises:       `{"exercises": [{"title": "<string>", "instructions": "<string>", "starter_code": "<string, optional>", "solution": "<string, optional>", "difficulty": "<easy|medium|hard>"}]}`,
	ComponentSummary:         `{"summary": "<1-2 paragraph recap, markdown>"}`,
	ComponentQuiz:            `{"quiz": [{"question": "<string>", "options": ["<string>", ...], "correct_option": <0-based index>, "explanation": "<string>"}]}`,
	ComponentDiagrams:        `{"diagrams": [{"type": "<flowchart|sequence|class>", "code": "<mermaid source>"}]}`,
}

// PromptBuilder composes the three prompt blocks: persona preamble,
// lesson request, and the labelled research context. Output is
// provider-neutral plain text; JSON-mode switching belongs to the
// orchestrator's callers.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

func (b *PromptBuilder) System(component string, req types.LessonRequest) string {
	var sb strings.Builder
	sb.WriteString("You are an expert instructor creating a personalized lesson for an online learning platform. ")
	sb.WriteString(fmt.Sprintf("The learner is a %s in the %s industry at %s skill level who prefers %s learning. ",
		req.Profile.Role, orDefault(req.Industry, "general"), req.Profile.SkillLevel, req.LearningStyle))
	sb.WriteString("Ground every claim in the verified research context when one is provided; prefer researched facts over your own priors, and cite source URLs inline where they support a statement. ")
	sb.WriteString("Respond with strict JSON only, no prose and no code fences, matching exactly this schema:\n")
	sb.WriteString(componentSchemas[component])
	return sb.String()
}

func (b *PromptBuilder) User(component string, req types.LessonRequest, structure types.StructurePlan, bundle *types.ResearchBundle, previousError string) string {
	var sb strings.Builder

	sb.WriteString("## Lesson request\n")
	sb.WriteString(fmt.Sprintf("Topic: %s\n", req.StepTitle))
	sb.WriteString(fmt.Sprintf("Lesson number: %d (vary content and examples from other lessons in this module)\n", req.LessonNumber))
	sb.WriteString(fmt.Sprintf("Component to produce: %s\n", component))
	sb.WriteString(fmt.Sprintf("Difficulty: %s; learner skill level: %s; content depth: %s\n", req.Difficulty, req.Profile.SkillLevel, structure.ContentDepth))
	sb.WriteString(fmt.Sprintf("Learning style: %s; time commitment: %s hours/week\n", req.LearningStyle, req.Profile.TimeCommitment))
	sb.WriteString(fmt.Sprintf("Plan for %d part(s) of about %d minutes each.\n", structure.NumParts, structure.DurationMinutes))
	if req.Category != "" {
		sb.WriteString(fmt.Sprintf("Topic category: %s", req.Category))
		if req.Language != "" {
			sb.WriteString(fmt.Sprintf(" (language: %s)", req.Language))
		}
		sb.WriteString("\n")
	}
	if previousError != "" {
		sb.WriteString("\nYour previous response failed validation and was discarded. Fix this and return corrected JSON: ")
		sb.WriteString(previousError)
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Verified research context\n")
	if bundle == nil || bundle.Summary == "all sources unavailable" {
		sb.WriteString("No research sources were reachable for this topic. Generate from your own knowledge and do not fabricate citations.\n")
		return sb.String()
	}

	if doc := bundle.Sources.OfficialDoc; doc != nil {
		sb.WriteString("\n### Official documentation\n")
		sb.WriteString(fmt.Sprintf("%s (%s)\n%s\n", doc.Title, doc.URL, truncateRunes(doc.BodyExcerpt, budgetDocExcerpt)))
	}
	if len(bundle.Sources.SOAnswers) > 0 {
		sb.WriteString("\n### Community Q&A (accepted answers)\n")
		for _, item := range bundle.Sources.SOAnswers {
			sb.WriteString(fmt.Sprintf("- Q: %s (score %d, %s)\n  A: %s\n",
				item.QuestionTitle, item.Score, item.URL, truncateRunes(item.AcceptedAnswerBody, budgetQAAnswer)))
		}
	}
	if len(bundle.Sources.CodeExamples) > 0 {
		sb.WriteString("\n### Popular code repositories\n")
		for _, item := range bundle.Sources.CodeExamples {
			sb.WriteString(fmt.Sprintf("- %s (%d stars, %s): %s\n",
				item.Repo, item.Stars, item.URL, truncateRunes(item.Snippet, budgetCode)))
		}
	}
	if len(bundle.Sources.Articles) > 0 {
		sb.WriteString("\n### Community articles\n")
		for _, item := range bundle.Sources.Articles {
			sb.WriteString(fmt.Sprintf("- %s (%d reactions, %s): %s\n",
				item.Title, item.Reactions, item.URL, truncateRunes(item.BodyExcerpt, budgetArticle)))
		}
	}
	if video := bundle.Sources.Video; video != nil {
		sb.WriteString("\n### Video\n")
		sb.WriteString(fmt.Sprintf("%s by %s (%s)\n", video.Title, video.ChannelTitle, video.URL))
		if video.Transcript != "" {
			sb.WriteString("Transcript excerpt: " + truncateRunes(video.Transcript, budgetTranscript) + "\n")
		}
	}
	return sb.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
