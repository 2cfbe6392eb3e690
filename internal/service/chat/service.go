package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/clone-chat/backend/internal/model/analysis"
	"github.com/zhouzirui/clone-chat/backend/internal/model/chat"
	"github.com/zhouzirui/clone-chat/backend/internal/model/questionnaire"
	"github.com/zhouzirui/clone-chat/backend/internal/service/ai"
)

var (
	ErrSessionNotFound         = errors.New("session not found")
	ErrBusy                    = errors.New("a reply is still pending")
	ErrEmptyMessage            = errors.New("message is empty")
	ErrChatNotStarted          = errors.New("chat has not started")
	ErrQuestionnaireIncomplete = errors.New("questionnaire is not complete")
	ErrInvalidName             = errors.New("ai name must not be empty")
	ErrInvalidQuestion         = errors.New("question index out of range")
)

// Responder sends one chat turn and explains its failures. *ai.Client
// implements it.
type Responder interface {
	Send(ctx context.Context, req ai.Request) (string, error)
	Describe(err error) string
}

// Service owns the questionnaire and conversation state of every session.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*chat.Session

	client   Responder
	tmpl     *ai.PromptTemplate
	analyses analysis.Store
	revealer *Revealer
}

// NewService creates an in-memory session service. A nil template selects
// Japanese, a nil store keeps analyses in memory and a nil client reports
// a missing credential on every turn.
func NewService(client Responder, tmpl *ai.PromptTemplate, analyses analysis.Store) *Service {
	if tmpl == nil {
		tmpl = ai.NewPromptManager().TemplateOrDefault("ja")
	}
	if client == nil {
		client = ai.NewClient(nil, "", tmpl)
	}
	if analyses == nil {
		analyses = analysis.NewMemoryStore()
	}
	return &Service{
		sessions: make(map[string]*chat.Session),
		client:   client,
		tmpl:     tmpl,
		analyses: analyses,
		revealer: NewRevealer(),
	}
}

// SetRevealer replaces the revealer used for incremental replies.
func (s *Service) SetRevealer(r *Revealer) {
	s.mu.Lock()
	s.revealer = r
	s.mu.Unlock()
}

// CreateSession starts a fresh questionnaire. An empty name selects
// chat.DefaultAIName. analysisKey selects the analysis slot the persona
// reads; when empty the session gets a private slot named by its ID.
func (s *Service) CreateSession(_ context.Context, aiName, analysisKey string) (chat.Session, error) {
	name := strings.TrimSpace(aiName)
	if name == "" {
		name = chat.DefaultAIName
	}

	now := time.Now().UTC()
	session := &chat.Session{
		ID:          uuid.NewString(),
		AIName:      name,
		AnalysisKey: strings.TrimSpace(analysisKey),
		Step:        chat.StepQuestions,
		Questions:   questionnaire.Seed(),
		Messages:    make([]chat.Message, 0, 16),
		CreatedAt:   now,
		LastActive:  now,
	}
	if session.AnalysisKey == "" {
		session.AnalysisKey = session.ID
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	log.Printf("[chat] created session=%s name=%s analysis_key=%s", session.ID, name, session.AnalysisKey)
	return session.Clone(), nil
}

// DeleteSession drops a session. A reply still pending for it is discarded.
// The analysis slot is kept.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	log.Printf("[chat] deleted session=%s", sessionID)
	return nil
}

// Sweep drops every idle session last touched before cutoff and returns how
// many were removed. Sessions with a pending reply are kept.
func (s *Service) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.Busy || !session.LastActive.Before(cutoff) {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	if removed > 0 {
		log.Printf("[chat] swept %d idle sessions, %d remaining", removed, len(s.sessions))
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done, dropping
// sessions idle for longer than ttl.
func (s *Service) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now.Add(-ttl))
		}
	}
}

// GetSession returns a snapshot of the session.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// AnswerQuestion records the answer of the current question and advances.
// An empty answer skips the question. Answering the last question marks
// the questionnaire complete.
func (s *Service) AnswerQuestion(_ context.Context, sessionID, answer string) (chat.Session, error) {
	return s.update(sessionID, func(session *chat.Session) error {
		session.Questions[session.Current].Answer = answer
		touchPrompt(session)
		if session.Current < len(session.Questions)-1 {
			session.Current++
		} else {
			session.Completed = true
		}
		return nil
	})
}

// PreviousQuestion steps back one question. It is a no-op on the first.
func (s *Service) PreviousQuestion(_ context.Context, sessionID string) (chat.Session, error) {
	return s.update(sessionID, func(session *chat.Session) error {
		if session.Current > 0 {
			session.Current--
		}
		return nil
	})
}

// SelectQuestion jumps to an already reached question.
func (s *Service) SelectQuestion(_ context.Context, sessionID string, index int) (chat.Session, error) {
	return s.update(sessionID, func(session *chat.Session) error {
		if !reachable(session, index) {
			return ErrInvalidQuestion
		}
		session.Step = chat.StepQuestions
		session.Current = index
		return nil
	})
}

// EditAnswer overwrites the answer of an already reached question without
// moving the cursor.
func (s *Service) EditAnswer(_ context.Context, sessionID string, index int, answer string) (chat.Session, error) {
	return s.update(sessionID, func(session *chat.Session) error {
		if !reachable(session, index) {
			return ErrInvalidQuestion
		}
		session.Questions[index].Answer = answer
		touchPrompt(session)
		return nil
	})
}

// BackToQuestions returns to the questionnaire keeping the conversation.
func (s *Service) BackToQuestions(_ context.Context, sessionID string) (chat.Session, error) {
	return s.update(sessionID, func(session *chat.Session) error {
		session.Step = chat.StepQuestions
		return nil
	})
}

// RenameAI changes the display name.
func (s *Service) RenameAI(_ context.Context, sessionID, name string) (chat.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return chat.Session{}, ErrInvalidName
	}
	return s.update(sessionID, func(session *chat.Session) error {
		if session.AIName == name {
			return nil
		}
		session.AIName = name
		touchPrompt(session)
		return nil
	})
}

// AnalysisKey returns the analysis slot key of the session.
func (s *Service) AnalysisKey(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	return session.AnalysisKey, nil
}

// CheckReady reports whether SendMessage would accept a turn right now.
func (s *Service) CheckReady(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	return readyForTurn(session)
}

// StartChat builds the persona prompt from the answers and the stored
// analysis, clears the conversation and greets the user.
func (s *Service) StartChat(ctx context.Context, sessionID string) (chat.Session, error) {
	key, err := s.AnalysisKey(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	analysisText, err := s.loadAnalysis(ctx, key)
	if err != nil {
		return chat.Session{}, err
	}

	return s.update(sessionID, func(session *chat.Session) error {
		if !session.Completed {
			return ErrQuestionnaireIncomplete
		}
		if session.Busy {
			return ErrBusy
		}

		session.PersonaPrompt = s.tmpl.Build(session.Questions, session.AIName, analysisText)
		session.PromptStale = false
		session.Step = chat.StepChat
		session.History = nil
		session.Messages = []chat.Message{newMessage(session.ID, chat.SenderAI, s.tmpl.GreetingFor(session.AIName))}

		log.Printf("[chat] session=%s chat started, prompt=%d chars, analysis=%t", session.ID, len(session.PersonaPrompt), analysisText != "")
		return nil
	})
}

// ResumeChat returns to a started chat keeping its transcript. Edits made
// in the meantime are picked up by the next turn.
func (s *Service) ResumeChat(_ context.Context, sessionID string) (chat.Session, error) {
	return s.update(sessionID, func(session *chat.Session) error {
		if session.PersonaPrompt == "" {
			return ErrChatNotStarted
		}
		session.Step = chat.StepChat
		return nil
	})
}

// PersonaPrompt returns the prompt the next turn will be sent with.
func (s *Service) PersonaPrompt(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return "", ErrSessionNotFound
	}
	if session.PersonaPrompt != "" && !session.PromptStale {
		prompt := session.PersonaPrompt
		s.mu.Unlock()
		return prompt, nil
	}
	questions := questionnaire.Clone(session.Questions)
	name := session.AIName
	key := session.AnalysisKey
	s.mu.Unlock()

	analysisText, err := s.loadAnalysis(ctx, key)
	if err != nil {
		return "", err
	}
	return s.tmpl.Build(questions, name, analysisText), nil
}

// Transcript returns the displayed messages of the session.
func (s *Service) Transcript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]chat.Message(nil), session.Messages...), nil
}

// SendMessage runs one chat turn. The returned message holds either the
// model's reply or the user-facing failure text; model failures are not
// returned as errors. With a non-nil emit a successful reply is revealed
// incrementally before the turn completes.
func (s *Service) SendMessage(ctx context.Context, sessionID, text string, emit EmitFunc) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	turn, err := s.beginTurn(sessionID, text)
	if err != nil {
		return chat.Message{}, err
	}

	if turn.stale {
		analysisText, loadErr := s.loadAnalysis(ctx, turn.analysisKey)
		if loadErr != nil {
			log.Printf("[chat] session=%s analysis unavailable, rebuilding without it: %v", sessionID, loadErr)
		}
		turn.prompt = s.tmpl.Build(turn.questions, turn.name, analysisText)
		log.Printf("[chat] session=%s rebuilt stale persona prompt", sessionID)
	}

	reply, sendErr := s.client.Send(ctx, ai.Request{
		Message:       text,
		PersonaPrompt: turn.prompt,
		PersonaName:   turn.name,
		History:       turn.history,
	})

	content := reply
	if sendErr != nil {
		log.Printf("[chat] session=%s reply failed: %v", sessionID, sendErr)
		content = s.client.Describe(sendErr)
	} else if emit != nil && turn.revealer != nil {
		if err := turn.revealer.Reveal(ctx, reply, emit); err != nil {
			log.Printf("[chat] session=%s reveal interrupted: %v", sessionID, err)
		}
	}

	return s.finishTurn(sessionID, turn, text, content, sendErr == nil), nil
}

type pendingTurn struct {
	placeholderID string
	revision      int
	analysisKey   string
	stale         bool
	prompt        string
	name          string
	questions     []questionnaire.Question
	history       []chat.Turn
	revealer      *Revealer
}

func (s *Service) beginTurn(sessionID, text string) (*pendingTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := readyForTurn(session); err != nil {
		return nil, err
	}

	placeholder := newMessage(session.ID, chat.SenderAI, "")
	placeholder.Pending = true
	session.Messages = append(session.Messages, newMessage(session.ID, chat.SenderUser, text), placeholder)
	session.Busy = true

	return &pendingTurn{
		placeholderID: placeholder.ID,
		revision:      session.Revision,
		analysisKey:   session.AnalysisKey,
		stale:         session.PromptStale || session.PersonaPrompt == "",
		prompt:        session.PersonaPrompt,
		name:          session.AIName,
		questions:     questionnaire.Clone(session.Questions),
		history:       append([]chat.Turn(nil), session.History...),
		revealer:      s.revealer,
	}, nil
}

func (s *Service) finishTurn(sessionID string, turn *pendingTurn, text, content string, ok bool) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, found := s.sessions[sessionID]
	if !found {
		return chat.Message{}
	}
	session.Busy = false
	session.LastActive = time.Now().UTC()

	if turn.stale && session.Revision == turn.revision {
		session.PersonaPrompt = turn.prompt
		session.PromptStale = false
	}
	if ok {
		session.History = append(session.History,
			chat.Turn{Role: chat.RoleUser, Text: text},
			chat.Turn{Role: chat.RoleModel, Text: content},
		)
	}

	for i := range session.Messages {
		if session.Messages[i].ID == turn.placeholderID {
			session.Messages[i].Content = content
			session.Messages[i].Pending = false
			return session.Messages[i]
		}
	}

	// The transcript was reset while the reply was pending.
	msg := newMessage(session.ID, chat.SenderAI, content)
	session.Messages = append(session.Messages, msg)
	return msg
}

func (s *Service) update(sessionID string, mutate func(*chat.Session) error) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	if err := mutate(session); err != nil {
		return chat.Session{}, err
	}
	session.LastActive = time.Now().UTC()
	return session.Clone(), nil
}

func (s *Service) loadAnalysis(ctx context.Context, key string) (string, error) {
	value, _, err := s.analyses.Load(ctx, key)
	return value, err
}

func readyForTurn(session *chat.Session) error {
	if session.Step != chat.StepChat {
		return ErrChatNotStarted
	}
	if session.Busy {
		return ErrBusy
	}
	return nil
}

// touchPrompt records a prompt-affecting edit. Once a chat has started the
// prompt is rebuilt before the next turn.
func touchPrompt(session *chat.Session) {
	session.Revision++
	if session.PersonaPrompt != "" {
		session.PromptStale = true
	}
}

func reachable(session *chat.Session, index int) bool {
	if index < 0 || index >= len(session.Questions) {
		return false
	}
	return session.Completed || index <= session.Current
}

func newMessage(sessionID, sender, content string) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
