package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/clone-chat/backend/internal/handler/analysis"
	"github.com/zhouzirui/clone-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/clone-chat/backend/internal/handler/realtime"
	"github.com/zhouzirui/clone-chat/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/clone-chat/backend/internal/middleware"
	analysisService "github.com/zhouzirui/clone-chat/backend/internal/service/analysis"
	chatService "github.com/zhouzirui/clone-chat/backend/internal/service/chat"
	"github.com/zhouzirui/clone-chat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. A nil extractor disables
// the analysis upload routes.
func NewRouter(chatSvc *chatService.Service, extractor *analysisService.Extractor, reveal bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(chatSvc)
	streamHandler := stream.New(chatSvc, reveal)
	wsHandler := realtime.NewWebSocketHandler(chatSvc, reveal)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)

		if extractor != nil {
			analysis.New(extractor, chatSvc).RegisterRoutes(api)
		}

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
				utils.RespondError(w, chat.StatusFor(err), err.Error())
			}
		})

		wsHandler.RegisterRoutes(api)
	})

	return r
}
