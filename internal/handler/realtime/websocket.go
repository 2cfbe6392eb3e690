package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatservice "github.com/zhouzirui/clone-chat/backend/internal/service/chat"
)

const (
	defaultReadTimeout = 60 * time.Second
	writeTimeout       = 10 * time.Second
)

// WebSocketHandler 通过WebSocket承载聊天回合
type WebSocketHandler struct {
	chatSvc  *chatservice.Service
	reveal   bool
	upgrader websocket.Upgrader

	// readTimeout bounds the silence between inbound frames. Pings go out
	// at nine tenths of it.
	readTimeout time.Duration
}

// NewWebSocketHandler creates the handler. With reveal disabled replies are
// sent as a single message frame.
func NewWebSocketHandler(chatSvc *chatservice.Service, reveal bool) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc:     chatSvc,
		reveal:      reveal,
		readTimeout: defaultReadTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// SetReadTimeout changes how long a connection may stay silent.
func (h *WebSocketHandler) SetReadTimeout(d time.Duration) {
	h.readTimeout = d
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection serialises writes; gorilla allows one concurrent writer.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *connection) send(msgType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	conn := &connection{conn: ws, sessionID: sessionID}
	log.Printf("[ws] new connection for session: %s", sessionID)

	// Turns run beside the read loop; wait for them before closing.
	var turns sync.WaitGroup
	defer turns.Wait()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go h.pingLoop(ctx, conn, h.readTimeout*9/10)

	h.sendInfo(conn, map[string]any{
		"type":   "connected",
		"aiName": session.AIName,
		"step":   session.Step,
	})

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}

		_ = ws.SetReadDeadline(time.Now().Add(h.readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, "session mismatch")
			continue
		}

		h.handleMessage(ctx, conn, &msg, &turns)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *connection, msg *inboundMessage, turns *sync.WaitGroup) {
	switch msg.Type {
	case "text":
		// The read loop keeps servicing pongs while the turn runs.
		turns.Add(1)
		go func() {
			defer turns.Done()
			h.handleTextMessage(ctx, conn, msg.Data)
		}()
	case "ping":
		h.sendInfo(conn, map[string]any{"type": "pong"})
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, conn *connection, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(conn, "invalid text payload")
		return
	}

	if err := h.chatSvc.CheckReady(ctx, conn.sessionID); err != nil {
		h.sendError(conn, err.Error())
		return
	}

	if err := conn.send("start", nil); err != nil {
		log.Printf("[ws] write start failed: %v", err)
		return
	}

	var emit chatservice.EmitFunc
	if h.reveal {
		emit = func(delta string) error {
			return conn.send("delta", map[string]string{"text": delta})
		}
	}

	reply, err := h.chatSvc.SendMessage(ctx, conn.sessionID, text.Text, emit)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	if err := conn.send("message", reply); err != nil {
		log.Printf("[ws] write reply failed: %v", err)
	}
}

func (h *WebSocketHandler) sendInfo(conn *connection, data map[string]any) {
	if err := conn.send("result", data); err != nil {
		log.Printf("[ws] write info failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(conn *connection, message string) {
	if err := conn.send("error", map[string]string{"message": message}); err != nil {
		log.Printf("[ws] write error failed: %v", err)
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *connection, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
