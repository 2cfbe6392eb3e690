package chat

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/clone-chat/backend/internal/model/questionnaire"
	chatService "github.com/zhouzirui/clone-chat/backend/internal/service/chat"
	"github.com/zhouzirui/clone-chat/backend/pkg/utils"
)

// Handler 问卷与聊天会话的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建会话处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册会话相关路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/questions", h.handleListQuestions)
	r.Post("/sessions", h.handleCreateSession)

	r.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Delete("/", h.handleDeleteSession)
		sr.Post("/answers", h.handleAnswer)
		sr.Post("/answers/previous", h.handlePrevious)
		sr.Put("/answers/{index}", h.handleEditAnswer)
		sr.Post("/questions", h.handleBackToQuestions)
		sr.Post("/questions/{index}", h.handleSelectQuestion)
		sr.Put("/name", h.handleRename)
		sr.Post("/chat", h.handleStartChat)
		sr.Post("/chat/resume", h.handleResumeChat)
		sr.Get("/prompt", h.handlePrompt)
		sr.Get("/messages", h.handleTranscript)
		sr.Post("/messages", h.handleSendMessage)
	})
}

type questionView struct {
	questionnaire.Question
	Category questionnaire.Category `json:"category"`
	Label    string                 `json:"categoryLabel"`
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, _ *http.Request) {
	seed := questionnaire.Seed()
	views := make([]questionView, 0, len(seed))
	for i, q := range seed {
		category := questionnaire.CategoryOf(i)
		views = append(views, questionView{Question: q, Category: category, Label: category.Label()})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AIName      string `json:"aiName"`
		AnalysisKey string `json:"analysisKey"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.AIName, payload.AnalysisKey)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Answer string `json:"answer"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.chatSvc.AnswerQuestion(r.Context(), chi.URLParam(r, "sessionID"), payload.Answer)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handlePrevious(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.PreviousQuestion(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleEditAnswer(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}

	var payload struct {
		Answer string `json:"answer"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.chatSvc.EditAnswer(r.Context(), chi.URLParam(r, "sessionID"), index, payload.Answer)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleSelectQuestion(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}

	session, err := h.chatSvc.SelectQuestion(r.Context(), chi.URLParam(r, "sessionID"), index)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleBackToQuestions(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.BackToQuestions(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.chatSvc.RenameAI(r.Context(), chi.URLParam(r, "sessionID"), payload.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleStartChat(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.StartChat(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleResumeChat(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.ResumeChat(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.chatSvc.PersonaPrompt(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.Transcript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.chatSvc.SendMessage(r.Context(), chi.URLParam(r, "sessionID"), payload.Content, nil)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func parseIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "question index must be an integer")
		return 0, false
	}
	return index, true
}

// StatusFor maps chat service errors to HTTP statuses.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, chatService.ErrChatNotStarted),
		errors.Is(err, chatService.ErrQuestionnaireIncomplete):
		return http.StatusConflict
	case errors.Is(err, chatService.ErrEmptyMessage),
		errors.Is(err, chatService.ErrInvalidName),
		errors.Is(err, chatService.ErrInvalidQuestion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[chat] unexpected error: %v", err)
	}
	utils.RespondError(w, status, err.Error())
}
