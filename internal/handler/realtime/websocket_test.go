package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/clone-chat/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/clone-chat/backend/internal/service/chat"
)

type fixedResponder struct{ reply string }

func (f fixedResponder) Send(context.Context, ai.Request) (string, error) { return f.reply, nil }
func (fixedResponder) Describe(error) string { return "failed" }

type slowResponder struct {
	reply string
	delay time.Duration
}

func (s slowResponder) Send(ctx context.Context, _ ai.Request) (string, error) {
	select {
	case <-time.After(s.delay):
		return s.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
func (slowResponder) Describe(error) string { return "failed" }

func newServer(t *testing.T, reveal bool) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	return newServerWith(t, fixedResponder{reply: "よっ"}, reveal, 0)
}

func newServerWith(t *testing.T, responder chatservice.Responder, reveal bool, readTimeout time.Duration) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService(responder, nil, nil)
	chatSvc.SetRevealer(&chatservice.Revealer{Interval: func(string) time.Duration { return time.Microsecond }})

	handler := NewWebSocketHandler(chatSvc, reveal)
	if readTimeout > 0 {
		handler.SetReadTimeout(readTimeout)
	}

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, chatSvc
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readType(t *testing.T, conn *websocket.Conn) outgoingMessage {
	t.Helper()
	var msg outgoingMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func startChat(t *testing.T, svc *chatservice.Service) string {
	t.Helper()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "Mirror", "")
	for range session.Questions {
		if _, err := svc.AnswerQuestion(ctx, session.ID, "ok"); err != nil {
			t.Fatalf("AnswerQuestion err: %v", err)
		}
	}
	if _, err := svc.StartChat(ctx, session.ID); err != nil {
		t.Fatalf("StartChat err: %v", err)
	}
	return session.ID
}

func TestWebSocketTextTurn(t *testing.T) {
	srv, chatSvc := newServer(t, true)
	sessionID := startChat(t, chatSvc)
	conn := dial(t, srv, sessionID)

	if msg := readType(t, conn); msg.Type != "result" {
		t.Fatalf("expected connected result, got %s", msg.Type)
	}

	if err := conn.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var types []string
	for {
		msg := readType(t, conn)
		types = append(types, msg.Type)
		if msg.Type == "message" || msg.Type == "error" {
			break
		}
	}

	want := []string{"start", "delta", "delta", "message"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected frame sequence %v", types)
	}
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	srv, chatSvc := newServer(t, false)
	sessionID := startChat(t, chatSvc)
	conn := dial(t, srv, sessionID)
	readType(t, conn)

	if err := conn.WriteJSON(map[string]any{"type": "audio"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readType(t, conn); msg.Type != "error" {
		t.Fatalf("expected error frame, got %s", msg.Type)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv, _ := newServer(t, true)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %+v", resp)
	}
}

func TestWebSocketSurvivesTurnLongerThanReadTimeout(t *testing.T) {
	readTimeout := 200 * time.Millisecond
	srv, chatSvc := newServerWith(t, slowResponder{reply: "おそくなった", delay: 3 * readTimeout}, false, readTimeout)
	sessionID := startChat(t, chatSvc)
	conn := dial(t, srv, sessionID)
	readType(t, conn)

	if err := conn.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Reading keeps the client answering server pings during the turn.
	for {
		msg := readType(t, conn)
		if msg.Type == "error" {
			t.Fatalf("unexpected error frame: %+v", msg.Data)
		}
		if msg.Type == "message" {
			break
		}
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	msg := readType(t, conn)
	if msg.Type != "result" {
		t.Fatalf("expected pong result after long turn, got %s", msg.Type)
	}
	data, _ := msg.Data.(map[string]any)
	if data["type"] != "pong" {
		t.Fatalf("expected pong, got %+v", msg.Data)
	}
}

func TestWebSocketRejectsOverlappingTurn(t *testing.T) {
	srv, chatSvc := newServerWith(t, slowResponder{reply: "まって", delay: 300 * time.Millisecond}, false, 0)
	sessionID := startChat(t, chatSvc)
	conn := dial(t, srv, sessionID)
	readType(t, conn)

	if err := conn.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": "one"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readType(t, conn); msg.Type != "start" {
		t.Fatalf("expected start, got %s", msg.Type)
	}
	time.Sleep(50 * time.Millisecond)
	if err := conn.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": "two"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var types []string
	for {
		msg := readType(t, conn)
		types = append(types, msg.Type)
		if msg.Type == "message" {
			break
		}
	}
	if strings.Join(types, ",") != "error,message" {
		t.Fatalf("expected the second turn to be rejected before it starts, got %v", types)
	}
}
