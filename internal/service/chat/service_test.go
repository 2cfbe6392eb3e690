package chat_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/clone-chat/backend/internal/model/analysis"
	modelchat "github.com/zhouzirui/clone-chat/backend/internal/model/chat"
	"github.com/zhouzirui/clone-chat/backend/internal/service/ai"
	chat "github.com/zhouzirui/clone-chat/backend/internal/service/chat"
	"github.com/zhouzirui/clone-chat/backend/internal/store/sqlite"
)

type fakeResponder struct {
	mu       sync.Mutex
	requests []ai.Request
	reply    string
	err      error
	release  chan struct{}
	entered  chan struct{}
}

func (f *fakeResponder) Send(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.reply, f.err
}

func (f *fakeResponder) Describe(err error) string {
	return ai.NewClient(nil, "", nil).Describe(err)
}

func (f *fakeResponder) last() ai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func completeQuestionnaire(t *testing.T, svc *chat.Service, sessionID string) {
	t.Helper()
	session, err := svc.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	for i := range session.Questions {
		_, err := svc.AnswerQuestion(context.Background(), sessionID, "answer-"+string(rune('a'+i)))
		require.NoError(t, err)
	}
}

func startedSession(t *testing.T, svc *chat.Service) modelchat.Session {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), "Mirror", "")
	require.NoError(t, err)
	completeQuestionnaire(t, svc, session.ID)
	session, err = svc.StartChat(context.Background(), session.ID)
	require.NoError(t, err)
	return session
}

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService(&fakeResponder{}, nil, nil)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "  ", "")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, modelchat.DefaultAIName, got.AIName)
	assert.Equal(t, modelchat.StepQuestions, got.Step)
	assert.Len(t, got.Questions, 15)
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService(&fakeResponder{}, nil, nil)

	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestQuestionnaireNavigation(t *testing.T) {
	svc := chat.NewService(&fakeResponder{}, nil, nil)
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "Mirror", "")

	session, err := svc.PreviousQuestion(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, session.Current)

	session, _ = svc.AnswerQuestion(ctx, session.ID, "やっほー")
	session, _ = svc.AnswerQuestion(ctx, session.ID, "")
	assert.Equal(t, 2, session.Current)
	assert.Equal(t, "やっほー", session.Questions[0].Answer)
	assert.Empty(t, session.Questions[1].Answer)

	session, _ = svc.PreviousQuestion(ctx, session.ID)
	assert.Equal(t, 1, session.Current)

	_, err = svc.SelectQuestion(ctx, session.ID, 5)
	assert.ErrorIs(t, err, chat.ErrInvalidQuestion)

	session, err = svc.SelectQuestion(ctx, session.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, session.Current)

	_, err = svc.StartChat(ctx, session.ID)
	assert.ErrorIs(t, err, chat.ErrQuestionnaireIncomplete)
}

func TestStartChatGreetsAndBuildsPromptWithAnalysis(t *testing.T) {
	store := analysis.NewMemoryStore()
	svc := chat.NewService(&fakeResponder{}, nil, store)
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, "Mirror", "")
	require.NoError(t, store.Save(ctx, session.ID, "・語尾に「〜じゃん」"))
	completeQuestionnaire(t, svc, session.ID)

	session, err := svc.StartChat(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, modelchat.StepChat, session.Step)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, modelchat.SenderAI, session.Messages[0].Sender)
	assert.True(t, strings.HasPrefix(session.Messages[0].Content, "こんにちは！私はMirror、"))

	prompt, err := svc.PersonaPrompt(ctx, session.ID)
	require.NoError(t, err)
	assert.Contains(t, prompt, "あなたは「Mirror」という名前のAI")
	assert.Contains(t, prompt, "・語尾に「〜じゃん」")
	assert.Contains(t, prompt, "回答: answer-a")
}

func TestSendMessageRecordsSuccessfulExchange(t *testing.T) {
	responder := &fakeResponder{reply: "それな〜"}
	svc := chat.NewService(responder, nil, nil)
	ctx := context.Background()
	session := startedSession(t, svc)

	msg, err := svc.SendMessage(ctx, session.ID, "今日どうだった？", nil)
	require.NoError(t, err)
	assert.Equal(t, "それな〜", msg.Content)
	assert.False(t, msg.Pending)

	_, err = svc.SendMessage(ctx, session.ID, "まじ？", nil)
	require.NoError(t, err)

	req := responder.last()
	assert.Equal(t, "まじ？", req.Message)
	assert.Equal(t, "Mirror", req.PersonaName)
	assert.Equal(t, []modelchat.Turn{
		{Role: modelchat.RoleUser, Text: "今日どうだった？"},
		{Role: modelchat.RoleModel, Text: "それな〜"},
	}, req.History)

	transcript, err := svc.Transcript(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 5)
	for _, m := range transcript {
		assert.False(t, m.Pending)
	}
}

func TestSendMessageWithoutCredentialShowsMessage(t *testing.T) {
	svc := chat.NewService(ai.NewClient(nil, "", nil), nil, nil)
	ctx := context.Background()
	session := startedSession(t, svc)

	msg, err := svc.SendMessage(ctx, session.ID, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "APIキーが設定されていません。環境変数GEMINI_API_KEYを設定してください。", msg.Content)

	transcript, _ := svc.Transcript(ctx, session.ID)
	require.Len(t, transcript, 3)
	assert.Equal(t, modelchat.SenderUser, transcript[1].Sender)
	assert.Equal(t, msg.Content, transcript[2].Content)
	assert.False(t, transcript[2].Pending)

	got, _ := svc.GetSession(ctx, session.ID)
	assert.Empty(t, got.History)
	assert.False(t, got.Busy)
}

func TestSendMessagePreconditions(t *testing.T) {
	svc := chat.NewService(&fakeResponder{reply: "ok"}, nil, nil)
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, "Mirror", "")
	_, err := svc.SendMessage(ctx, session.ID, "hi", nil)
	assert.ErrorIs(t, err, chat.ErrChatNotStarted)

	_, err = svc.SendMessage(ctx, session.ID, "   ", nil)
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	_, err = svc.SendMessage(ctx, "missing", "hi", nil)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestSendMessageRejectsWhileBusy(t *testing.T) {
	responder := &fakeResponder{
		reply:   "ok",
		release: make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	svc := chat.NewService(responder, nil, nil)
	ctx := context.Background()
	session := startedSession(t, svc)

	done := make(chan error, 1)
	go func() {
		_, err := svc.SendMessage(ctx, session.ID, "first", nil)
		done <- err
	}()
	<-responder.entered

	pending, _ := svc.GetSession(ctx, session.ID)
	assert.True(t, pending.Busy)
	assert.True(t, pending.Messages[len(pending.Messages)-1].Pending)

	_, err := svc.SendMessage(ctx, session.ID, "second", nil)
	assert.ErrorIs(t, err, chat.ErrBusy)

	close(responder.release)
	require.NoError(t, <-done)

	got, _ := svc.GetSession(ctx, session.ID)
	assert.False(t, got.Busy)
	assert.Len(t, got.Messages, 3)
}

func TestEditAfterChatStartRebuildsPromptOnNextSend(t *testing.T) {
	responder := &fakeResponder{reply: "ok"}
	svc := chat.NewService(responder, nil, nil)
	ctx := context.Background()
	session := startedSession(t, svc)

	_, err := svc.SendMessage(ctx, session.ID, "one", nil)
	require.NoError(t, err)
	assert.Contains(t, responder.last().PersonaPrompt, "回答: answer-a")

	_, err = svc.BackToQuestions(ctx, session.ID)
	require.NoError(t, err)
	edited, err := svc.EditAnswer(ctx, session.ID, 0, "edited answer")
	require.NoError(t, err)
	assert.True(t, edited.PromptStale)
	_, err = svc.RenameAI(ctx, session.ID, "Echo")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, session.ID, "two", nil)
	assert.ErrorIs(t, err, chat.ErrChatNotStarted)

	session, err = svc.ResumeChat(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 3)

	_, err = svc.SendMessage(ctx, session.ID, "three", nil)
	require.NoError(t, err)
	req := responder.last()
	assert.Contains(t, req.PersonaPrompt, "回答: edited answer")
	assert.Contains(t, req.PersonaPrompt, "あなたは「Echo」")
	assert.Equal(t, "Echo", req.PersonaName)

	got, _ := svc.GetSession(ctx, session.ID)
	assert.False(t, got.PromptStale)
	assert.Len(t, got.History, 4)
}

func TestResumeChatRequiresStartedChat(t *testing.T) {
	svc := chat.NewService(&fakeResponder{}, nil, nil)
	session, _ := svc.CreateSession(context.Background(), "Mirror", "")

	_, err := svc.ResumeChat(context.Background(), session.ID)
	assert.ErrorIs(t, err, chat.ErrChatNotStarted)
}

func TestRenameRejectsBlankName(t *testing.T) {
	svc := chat.NewService(&fakeResponder{}, nil, nil)
	session, _ := svc.CreateSession(context.Background(), "Mirror", "")

	_, err := svc.RenameAI(context.Background(), session.ID, "  ")
	assert.ErrorIs(t, err, chat.ErrInvalidName)
}

func TestSendMessageRevealsReply(t *testing.T) {
	svc := chat.NewService(&fakeResponder{reply: "やあ!"}, nil, nil)
	svc.SetRevealer(&chat.Revealer{Interval: func(string) time.Duration { return time.Microsecond }})
	session := startedSession(t, svc)

	var deltas []string
	msg, err := svc.SendMessage(context.Background(), session.ID, "hi", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"や", "あ", "!"}, deltas)
	assert.Equal(t, "やあ!", msg.Content)
}

func TestAnalysisKeyDefaultsToSessionID(t *testing.T) {
	svc := chat.NewService(&fakeResponder{}, nil, nil)
	ctx := context.Background()

	private, err := svc.CreateSession(ctx, "Mirror", "")
	require.NoError(t, err)
	assert.Equal(t, private.ID, private.AnalysisKey)

	shared, err := svc.CreateSession(ctx, "Mirror", " alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", shared.AnalysisKey)

	key, err := svc.AnalysisKey(ctx, shared.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", key)
}

func TestPersistedAnalysisSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "analysis.db")

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	before := chat.NewService(&fakeResponder{}, nil, store)
	session, err := before.CreateSession(ctx, "Mirror", "alice")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, session.AnalysisKey, "・語尾に「〜っす」"))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	after := chat.NewService(&fakeResponder{}, nil, reopened)

	_, err = after.GetSession(ctx, session.ID)
	require.ErrorIs(t, err, chat.ErrSessionNotFound)

	next, err := after.CreateSession(ctx, "Mirror", "alice")
	require.NoError(t, err)
	completeQuestionnaire(t, after, next.ID)
	_, err = after.StartChat(ctx, next.ID)
	require.NoError(t, err)

	prompt, err := after.PersonaPrompt(ctx, next.ID)
	require.NoError(t, err)
	assert.Contains(t, prompt, "〜っす")
}

func TestDeleteSession(t *testing.T) {
	svc := chat.NewService(&fakeResponder{}, nil, nil)
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "Mirror", "")

	require.NoError(t, svc.DeleteSession(ctx, session.ID))
	_, err := svc.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, session.ID), chat.ErrSessionNotFound)
}

func TestSweepDropsIdleSessionsOnly(t *testing.T) {
	responder := &fakeResponder{reply: "ok", entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc := chat.NewService(responder, nil, nil)
	ctx := context.Background()

	idle, _ := svc.CreateSession(ctx, "Idle", "")
	busy := startedSession(t, svc)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.SendMessage(ctx, busy.ID, "hi", nil)
	}()
	<-responder.entered

	removed := svc.Sweep(time.Now().Add(time.Minute))
	assert.Equal(t, 1, removed)

	_, err := svc.GetSession(ctx, idle.ID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	_, err = svc.GetSession(ctx, busy.ID)
	assert.NoError(t, err, "a session with a pending reply must survive the sweep")

	close(responder.release)
	<-done

	assert.Equal(t, 0, svc.Sweep(time.Now().Add(-time.Minute)))
	assert.Equal(t, 1, svc.Sweep(time.Now().Add(time.Minute)))
}

func TestCheckReady(t *testing.T) {
	svc := chat.NewService(&fakeResponder{}, nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.CheckReady(ctx, "missing"), chat.ErrSessionNotFound)

	session, _ := svc.CreateSession(ctx, "Mirror", "")
	assert.ErrorIs(t, svc.CheckReady(ctx, session.ID), chat.ErrChatNotStarted)

	started := startedSession(t, svc)
	assert.NoError(t, svc.CheckReady(ctx, started.ID))
}
