package lessongen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pathwise/pathwise-backend/internal/types"
)

const maxQuizItems = 10

// ParseError reports which component failed validation and why. The
// assembler feeds the reason back into one regeneration prompt; a second
// failure fails the lesson.
type ParseError struct {
	Component string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failure in %s: %s", e.Component, e.Reason)
}

// ExtractJSON pulls the JSON payload out of model output tolerantly:
// code fences and surrounding prose are stripped, the first balanced
// object or array wins.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if end := strings.LastIndex(s, "]"); end > arrStart {
			return s[arrStart : end+1]
		}
	}
	if objStart >= 0 {
		if end := strings.LastIndex(s, "}"); end > objStart {
			return s[objStart : end+1]
		}
	}
	return s
}

// Parser validates one component's AI response and writes it into the
// lesson document. Missing required fields are rejected, never repaired;
// shape variations (diagram wrappers etc.) are normalized.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (p *Parser) ParseComponent(doc *types.LessonDocumentV1, component, raw, contentDepth, timeCommitment string) error {
	payload := ExtractJSON(raw)

	switch component {
	case ComponentIntroduction:
		text, err := p.textField(component, payload, "introduction")
		if err != nil {
			return err
		}
		doc.Introduction = text
	case ComponentReading:
		text, err := p.textField(component, payload, "reading")
		if err != nil {
			return err
		}
		doc.Reading = text
		doc.Body = text
	case ComponentVideoStudyGuide:
		text, err := p.textField(component, payload, "video_study_guide")
		if err != nil {
			return err
		}
		doc.VideoStudyGuide = text
	case ComponentSummary:
		text, err := p.textField(component, payload, "summary")
		if err != nil {
			return err
		}
		doc.Summary = text
	case ComponentExercises:
		exercises, err := p.parseExercises(payload)
		if err != nil {
			return err
		}
		doc.Exercises = capExercises(exercises, contentDepth, timeCommitment)
	case ComponentQuiz:
		quiz, err := p.parseQuiz(payload)
		if err != nil {
			return err
		}
		if len(quiz) > maxQuizItems {
			quiz = quiz[:maxQuizItems]
		}
		doc.Quiz = quiz
	case ComponentDiagrams:
		diagrams, err := p.parseDiagrams(payload)
		if err != nil {
			return err
		}
		doc.Diagrams = diagrams
	default:
		return &ParseError{Component: component, Reason: "unknown component"}
	}
	return nil
}

func (p *Parser) textField(component, payload, field string) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return "", &ParseError{Component: component, Reason: "response is not a JSON object: " + err.Error()}
	}
	rawField, ok := obj[field]
	if !ok {
		return "", &ParseError{Component: component, Reason: "missing required field " + field}
	}
	var text string
	if err := json.Unmarshal(rawField, &text); err != nil {
		return "", &ParseError{Component: component, Reason: field + " is not a string"}
	}
	if strings.TrimSpace(text) == "" {
		return "", &ParseError{Component: component, Reason: field + " is empty"}
	}
	return text, nil
}

func (p *Parser) parseExercises(payload string) ([]types.Exercise, error) {
	var obj struct {
		Exercises []types.Exercise `json:"exercises"`
	}
	var exercises []types.Exercise
	if err := json.Unmarshal([]byte(payload), &obj); err == nil && obj.Exercises != nil {
		exercises = obj.Exercises
	} else if err := json.Unmarshal([]byte(payload), &exercises); err != nil {
		return nil, &ParseError{Component: ComponentExercises, Reason: "expected an exercises array: " + err.Error()}
	}
	if len(exercises) == 0 {
		return nil, &ParseError{Component: ComponentExercises, Reason: "exercises array is empty"}
	}
	for i, ex := range exercises {
		if strings.TrimSpace(ex.Title) == "" {
			return nil, &ParseError{Component: ComponentExercises, Reason: fmt.Sprintf("exercise %d missing title", i)}
		}
		if strings.TrimSpace(ex.Instructions) == "" {
			return nil, &ParseError{Component: ComponentExercises, Reason: fmt.Sprintf("exercise %d missing instructions", i)}
		}
	}
	return exercises, nil
}

func (p *Parser) parseQuiz(payload string) ([]types.QuizItem, error) {
	var obj struct {
		Quiz []types.QuizItem `json:"quiz"`
	}
	var quiz []types.QuizItem
	if err := json.Unmarshal([]byte(payload), &obj); err == nil && obj.Quiz != nil {
		quiz = obj.Quiz
	} else if err := json.Unmarshal([]byte(payload), &quiz); err != nil {
		return nil, &ParseError{Component: ComponentQuiz, Reason: "expected a quiz array: " + err.Error()}
	}
	if len(quiz) == 0 {
		return nil, &ParseError{Component: ComponentQuiz, Reason: "quiz array is empty"}
	}
	for i, item := range quiz {
		if strings.TrimSpace(item.Question) == "" {
			return nil, &ParseError{Component: ComponentQuiz, Reason: fmt.Sprintf("quiz item %d missing question", i)}
		}
		if len(item.Options) < 2 {
			return nil, &ParseError{Component: ComponentQuiz, Reason: fmt.Sprintf("quiz item %d needs at least 2 options", i)}
		}
		if item.CorrectOption < 0 || item.CorrectOption >= len(item.Options) {
			return nil, &ParseError{Component: ComponentQuiz, Reason: fmt.Sprintf("quiz item %d correct_option out of range", i)}
		}
	}
	return quiz, nil
}

// parseDiagrams normalizes the shapes models actually emit: the schema
// wrapper, a bare array, a single object, or a raw diagram string.
func (p *Parser) parseDiagrams(payload string) ([]types.Diagram, error) {
	var wrapper struct {
		Diagrams json.RawMessage `json:"diagrams"`
	}
	inner := json.RawMessage(payload)
	if err := json.Unmarshal([]byte(payload), &wrapper); err == nil && len(wrapper.Diagrams) > 0 {
		inner = wrapper.Diagrams
	}

	var diagrams []types.Diagram
	if err := json.Unmarshal(inner, &diagrams); err == nil {
		return validateDiagrams(diagrams)
	}
	var single types.Diagram
	if err := json.Unmarshal(inner, &single); err == nil && single.Code != "" {
		return validateDiagrams([]types.Diagram{single})
	}
	var rawStrings []string
	if err := json.Unmarshal(inner, &rawStrings); err == nil && len(rawStrings) > 0 {
		out := make([]types.Diagram, 0, len(rawStrings))
		for _, code := range rawStrings {
			out = append(out, types.Diagram{Type: "flowchart", Code: code})
		}
		return validateDiagrams(out)
	}
	var rawString string
	if err := json.Unmarshal(inner, &rawString); err == nil && strings.TrimSpace(rawString) != "" {
		return []types.Diagram{{Type: "flowchart", Code: rawString}}, nil
	}
	return nil, &ParseError{Component: ComponentDiagrams, Reason: "could not coerce diagrams payload to [{type, code}]"}
}

func validateDiagrams(diagrams []types.Diagram) ([]types.Diagram, error) {
	if len(diagrams) == 0 {
		return nil, &ParseError{Component: ComponentDiagrams, Reason: "diagrams array is empty"}
	}
	out := make([]types.Diagram, 0, len(diagrams))
	for _, d := range diagrams {
		if strings.TrimSpace(d.Code) == "" {
			continue
		}
		if strings.TrimSpace(d.Type) == "" {
			d.Type = "flowchart"
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, &ParseError{Component: ComponentDiagrams, Reason: "no diagram carried code"}
	}
	return out, nil
}

func exerciseCapForDepth(contentDepth string) int {
	switch contentDepth {
	case "foundational":
		return 5
	case "advanced":
		return 10
	default:
		return 8
	}
}

// capExercises applies the depth cap, then the time-commitment adjustment:
// learners with 1-3 hours/week keep only the leading 60% of exercises.
func capExercises(exercises []types.Exercise, contentDepth, timeCommitment string) []types.Exercise {
	if limit := exerciseCapForDepth(contentDepth); len(exercises) > limit {
		exercises = exercises[:limit]
	}
	if timeCommitment == "1-3" && len(exercises) > 1 {
		keep := (len(exercises)*6 + 9) / 10 // ceil(60%)
		if keep < 1 {
			keep = 1
		}
		exercises = exercises[:keep]
	}
	return exercises
}
