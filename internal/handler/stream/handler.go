package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"

	chatService "github.com/zhouzirui/clone-chat/backend/internal/service/chat"
	"github.com/zhouzirui/clone-chat/backend/pkg/utils"
)

// Handler streams chat replies via Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
	reveal  bool
}

// New creates a stream handler. With reveal disabled replies arrive as a
// single message event.
func New(chatSvc *chatService.Service, reveal bool) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		reveal:  reveal,
	}
}

// StreamResponse is the data payload of every stream event.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest runs one chat turn and streams its reply. Precondition
// failures are returned before any header is written; errors after the
// stream is open are reported as error events.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := h.chatSvc.CheckReady(ctx, sessionID); err != nil {
		return err
	}

	utils.SetupSSEHeaders(w)

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Content:   session.AIName,
	})

	var emit chatService.EmitFunc
	if h.reveal {
		emit = func(delta string) error {
			return h.sendSSE(w, flusher, StreamResponse{
				Event:     "delta",
				SessionID: sessionID,
				Content:   delta,
			})
		}
	}

	reply, err := h.chatSvc.SendMessage(ctx, sessionID, userMessage, emit)
	if err != nil {
		h.sendSSEError(w, flusher, err.Error())
		return nil
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		MessageID: reply.ID,
		Content:   reply.Content,
	})
	h.sendSSE(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed response for session=%s, length=%d", sessionID, len(reply.Content))
	return nil
}

func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) error {
	if err := utils.SendSSEEvent(w, flusher, response.Event, response); err != nil {
		log.Printf("[stream] failed to write %s event: %v", response.Event, err)
		return err
	}
	return nil
}

func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	_ = h.sendSSE(w, flusher, StreamResponse{
		Event: "error",
		Error: errorMsg,
	})
}
