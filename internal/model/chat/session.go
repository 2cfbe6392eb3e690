package chat

import (
	"time"

	"github.com/zhouzirui/clone-chat/backend/internal/model/questionnaire"
)

// Step is the wizard position of a session.
type Step string

const (
	StepQuestions Step = "questions"
	StepChat      Step = "chat"
)

// DefaultAIName is used when a session is created without a name.
const DefaultAIName = "クローンAI"

// Session captures one questionnaire pass and the conversation built on it.
type Session struct {
	ID     string `json:"id"`
	AIName string `json:"aiName"`
	// AnalysisKey names the analysis slot the persona prompt reads. It
	// outlives the session so a later session can reuse a stored analysis.
	AnalysisKey   string                   `json:"analysisKey"`
	Step          Step                     `json:"step"`
	Current       int                      `json:"currentQuestion"`
	Questions     []questionnaire.Question `json:"questions"`
	Completed     bool                     `json:"completed"`
	PersonaPrompt string                   `json:"-"`
	PromptStale   bool                     `json:"promptStale"`
	// Revision counts edits that affect the persona prompt.
	Revision   int       `json:"-"`
	Messages   []Message `json:"messages"`
	History    []Turn    `json:"-"`
	Busy       bool      `json:"busy"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

// Clone returns a deep copy safe to hand out of the owning service.
func (s *Session) Clone() Session {
	out := *s
	out.Questions = questionnaire.Clone(s.Questions)
	out.Messages = append([]Message(nil), s.Messages...)
	out.History = append([]Turn(nil), s.History...)
	return out
}
