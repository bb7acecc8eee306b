package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/maryammo2000/fast-flow-web/internal/cache"
	"github.com/maryammo2000/fast-flow-web/internal/models"
	"github.com/maryammo2000/fast-flow-web/internal/session"
	"github.com/maryammo2000/fast-flow-web/internal/submit"

	"go.uber.org/zap"
)

// RealtimeReader 读取实时缓存中的会话快照
type RealtimeReader interface {
	Get(ctx context.Context, sessionID string) (*models.SessionView, error)
}

// SessionHandler 会话接口
type SessionHandler struct {
	manager   *session.Manager
	submitter *submit.Submitter
	realtime  RealtimeReader
	logger    *zap.Logger
}

// NewSessionHandler realtime 可以为 nil（未启用 Redis 缓存）
func NewSessionHandler(manager *session.Manager, submitter *submit.Submitter, realtime RealtimeReader, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager:   manager,
		submitter: submitter,
		realtime:  realtime,
		logger:    logger,
	}
}

// OpenRequest 打开会话请求
type OpenRequest struct {
	Consent  bool   `json:"consent"`
	CameraID string `json:"camera_id"`
}

// POST /api/v1/sessions
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	s, err := h.manager.Open(req.Consent, req.CameraID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(s.View()))
}

// GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.manager.List()))
}

// GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s.View()))
}

// DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// GET /api/v1/sessions/{id}/realtime
// 展示端轮询用，读取最近一次发布到缓存的快照
func (h *SessionHandler) Realtime(w http.ResponseWriter, r *http.Request) {
	if h.realtime == nil {
		writeJSON(w, http.StatusNotFound, Fail("realtime cache disabled"))
		return
	}
	view, err := h.realtime.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			writeJSON(w, http.StatusNotFound, Fail("no realtime data"))
			return
		}
		h.logger.Warn("Realtime cache read failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("cache unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// POST /api/v1/sessions/{id}/frames
// 同步处理一帧，返回更新后的快照
func (h *SessionHandler) Frame(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var frame models.FrameEvent
	if err := readBodyJSON(r, maxBodyBytes, &frame); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid frame"))
		return
	}
	frame.SessionID = s.ID()

	view, err := s.HandleFrame(r.Context(), &frame)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// POST /api/v1/sessions/{id}/reset
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, err := s.Reset(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// POST /api/v1/sessions/{id}/submit
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req submit.Request
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	sub, err := h.submitter.Submit(r.Context(), s.ID(), s.State(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(sub))
}

// writeError 领域错误到 HTTP 状态码
func (h *SessionHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrConsentRequired), errors.Is(err, submit.ErrConsentRequired):
		writeJSON(w, http.StatusForbidden, Fail(err.Error()))
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionClosed):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	case errors.Is(err, submit.ErrNotSubmittable):
		writeJSON(w, http.StatusConflict, Fail(err.Error()))
	case errors.Is(err, submit.ErrInvalidInput):
		writeJSON(w, http.StatusUnprocessableEntity, Fail(err.Error()))
	case errors.Is(err, submit.ErrSinkFailed):
		writeJSON(w, http.StatusBadGateway, Fail("failed to save submission, please retry"))
	default:
		h.logger.Error("Unhandled request error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}
