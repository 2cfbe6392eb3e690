package analysis

import (
	"errors"
	"io"
	"log"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	analysisModel "github.com/zhouzirui/clone-chat/backend/internal/model/analysis"
	analysisService "github.com/zhouzirui/clone-chat/backend/internal/service/analysis"
	chatService "github.com/zhouzirui/clone-chat/backend/internal/service/chat"
	"github.com/zhouzirui/clone-chat/backend/pkg/utils"
)

const (
	maxUploadMemory = 32 << 20
	maxCorpusBytes  = 32 << 20
)

// Handler 接收聊天记录导出文件并执行风格分析
type Handler struct {
	extractor *analysisService.Extractor
	chatSvc   *chatService.Service
}

// New 创建分析处理器
func New(extractor *analysisService.Extractor, chatSvc *chatService.Service) *Handler {
	return &Handler{
		extractor: extractor,
		chatSvc:   chatSvc,
	}
}

// RegisterRoutes mounts the analysis routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sessionID}/analysis", h.handleAnalyze)
	r.Delete("/sessions/{sessionID}/analysis", h.handleClear)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	key, err := h.chatSvc.AnalysisKey(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxCorpusBytes+1))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read file: "+err.Error())
		return
	}
	if len(data) > maxCorpusBytes {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}
	if !utf8.Valid(data) {
		utils.RespondError(w, http.StatusBadRequest, "file must be UTF-8 text")
		return
	}

	log.Printf("[analysis] session=%s key=%s received %s (%d bytes)", sessionID, key, header.Filename, len(data))

	result, err := h.extractor.Analyze(r.Context(), key, string(data), r.FormValue("userName"), func(stage analysisModel.Stage, detail string) {
		log.Printf("[analysis] session=%s stage=%s %s", sessionID, stage, detail)
	})
	switch {
	case errors.Is(err, analysisService.ErrInputRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analysisService.ErrAnalysisInProgress):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case err != nil:
		utils.RespondJSON(w, http.StatusBadGateway, map[string]any{
			"error":  result.Summary,
			"result": result,
		})
	default:
		utils.RespondJSON(w, http.StatusOK, result)
	}
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	key, err := h.chatSvc.AnalysisKey(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := h.extractor.Clear(r.Context(), key); err != nil {
		log.Printf("[analysis] session=%s clear failed: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to clear analysis")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
