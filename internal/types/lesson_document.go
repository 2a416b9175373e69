package types

// Pure JSON contract for the assembled lesson document stored in
// lesson_content.components. Not a DB model.

type Diagram struct {
	Type string `json:"type"` // e.g. flowchart|sequence|class
	Code string `json:"code"`
}

type QuizItem struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Explanation   string   `json:"explanation,omitempty"`
}

type Exercise struct {
	Title        string `json:"title"`
	Instructions string `json:"instructions"`
	StarterCode  string `json:"starter_code,omitempty"`
	Solution     string `json:"solution,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
}

type SchedulePart struct {
	Part          int   `json:"part"`
	Week          int   `json:"week"`
	ReviewOffsets []int `json:"review_offsets"` // days after first study
}

type StructurePlan struct {
	NumParts        int            `json:"num_parts"`
	DurationMinutes int            `json:"duration_minutes"`
	ContentDepth    string         `json:"content_depth"` // foundational|comprehensive|advanced
	Schedule        []SchedulePart `json:"schedule"`
}

type LessonDocumentV1 struct {
	Version         int           `json:"version"`
	Introduction    string        `json:"introduction"`
	Body            string        `json:"body,omitempty"`
	Reading         string        `json:"reading,omitempty"`
	VideoStudyGuide string        `json:"video_study_guide,omitempty"`
	Summary         string        `json:"summary,omitempty"`
	Exercises       []Exercise    `json:"exercises,omitempty"`
	Diagrams        []Diagram     `json:"diagrams,omitempty"`
	Quiz            []QuizItem    `json:"quiz,omitempty"`
	Structure       StructurePlan `json:"structure"`
}

// LessonRequest is the ephemeral input to the assembler, derived from the
// queue payload and the module row.
type LessonRequest struct {
	ModuleID       string      `json:"module_id"`
	StepTitle      string      `json:"step_title"`
	LessonNumber   int         `json:"lesson_number"`
	LearningStyle  string      `json:"learning_style"`
	Difficulty     string      `json:"difficulty"`
	Industry       string      `json:"industry"`
	Profile        UserProfile `json:"profile"`
	Category       string      `json:"category,omitempty"`
	Language       string      `json:"language,omitempty"`
	EnableResearch bool        `json:"enable_research"`
}
