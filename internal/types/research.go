package types

import "time"

// Research evidence contracts. A ResearchBundle lives for one assembler
// invocation and is denormalized into lesson source_attribution; it is
// never persisted as-is.

type ResearchSourceStatus struct {
	OfficialDocsOK  bool   `json:"official_docs_ok"`
	StackOverflowOK bool   `json:"stackoverflow_ok"`
	GitHubOK        bool   `json:"github_ok"`
	DevToOK         bool   `json:"devto_ok"`
	YouTubeOK       bool   `json:"youtube_ok"`
	DevToTier       string `json:"devto_tier"`   // recent|extended|none
	VideoSource     string `json:"video_source"` // primary|fallback|none
}

type OfficialDoc struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	BodyExcerpt string    `json:"body_excerpt"`
	Sections    []string  `json:"sections,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type QAAnswer struct {
	QuestionTitle      string    `json:"question_title"`
	Score              int       `json:"score"`
	AcceptedAnswerBody string    `json:"accepted_answer_body"`
	ViewCount          int       `json:"view_count"`
	URL                string    `json:"url"`
	FetchedAt          time.Time `json:"fetched_at"`
}

type CodeExample struct {
	Repo      string    `json:"repo"`
	Path      string    `json:"path"`
	Snippet   string    `json:"snippet"`
	Stars     int       `json:"stars"`
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
}

type Article struct {
	Title       string    `json:"title"`
	BodyExcerpt string    `json:"body_excerpt"`
	Reactions   int       `json:"reactions"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type Video struct {
	Title        string    `json:"title"`
	ChannelTitle string    `json:"channel_title"`
	URL          string    `json:"url"`
	Transcript   string    `json:"transcript,omitempty"`
	QualityScore float64   `json:"quality_score"`
	PublishedAt  time.Time `json:"published_at"`
	FetchedAt    time.Time `json:"fetched_at"`
}

type ResearchSources struct {
	OfficialDoc  *OfficialDoc  `json:"official_doc,omitempty"`
	SOAnswers    []QAAnswer    `json:"so_answers"`
	CodeExamples []CodeExample `json:"code_examples"`
	Articles     []Article     `json:"articles"`
	Video        *Video        `json:"video,omitempty"`
}

type ResearchBundle struct {
	Topic        string               `json:"topic"`
	Category     string               `json:"category"`
	Language     string               `json:"language,omitempty"`
	ElapsedMS    int64                `json:"elapsed_ms"`
	Sources      ResearchSources      `json:"sources"`
	SourceStatus ResearchSourceStatus `json:"source_status"`
	Summary      string               `json:"summary"`
}
