package model

import (
	"time"
)

// IntentCategory is the classified purpose of a question.
type IntentCategory string

const (
	IntentCost          IntentCategory = "cost"
	IntentProjectMeta   IntentCategory = "project_meta"
	IntentTeam          IntentCategory = "team"
	IntentServiceHealth IntentCategory = "service_health"
	IntentActivity      IntentCategory = "activity"
	IntentUnknown       IntentCategory = "unknown"
)

// Section names a slice of snapshot data an answer can draw on.
type Section string

const (
	SectionProject  Section = "project"
	SectionGitHub   Section = Section(PlatformGitHub)
	SectionJira     Section = Section(PlatformJira)
	SectionAWS      Section = Section(PlatformAWS)
	SectionRailway  Section = Section(PlatformRailway)
	SectionOpenAI   Section = Section(PlatformOpenAI)
	SectionInsights Section = "insights"
)

// QuestionIntent is the classifier output for a question.
type QuestionIntent struct {
	Category IntentCategory `json:"category"`
	Sections []Section      `json:"sections"`
	Keywords []string       `json:"keywords,omitempty"`
}

// AnswerStrategy identifies which synthesizer produced an answer.
type AnswerStrategy string

const (
	StrategyTemplate   AnswerStrategy = "template"
	StrategyGenerative AnswerStrategy = "generative"
)

// Answer is returned to the operator for a question.
type Answer struct {
	Text       string         `json:"text"`
	Confidence float64        `json:"confidence"`
	Sources    []string       `json:"sources"`
	Intent     IntentCategory `json:"intent"`
	Strategy   AnswerStrategy `json:"strategy"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ConversationTurn is one recorded question and answer.
type ConversationTurn struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	OperatorID string         `json:"operator_id"`
	ProjectID  string         `json:"project_id"`
	Question   string         `json:"question"`
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence"`
	Sources    []string       `json:"sources"`
	Intent     IntentCategory `json:"intent"`
	Strategy   AnswerStrategy `json:"strategy"`
}
