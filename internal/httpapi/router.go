// Package httpapi 会话与提交的 HTTP 接口
package httpapi

import (
	"context"
	"net/http"
	"sort"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（带方法的路由模式）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterSessionRoutes 注册会话路由
func (r *Router) RegisterSessionRoutes(h *SessionHandler) {
	r.Handle("POST /api/v1/sessions", h.Open)
	r.Handle("GET /api/v1/sessions", h.List)
	r.Handle("GET /api/v1/sessions/{id}", h.Get)
	r.Handle("DELETE /api/v1/sessions/{id}", h.Close)
	r.Handle("GET /api/v1/sessions/{id}/realtime", h.Realtime)
	r.Handle("POST /api/v1/sessions/{id}/frames", h.Frame)
	r.Handle("POST /api/v1/sessions/{id}/reset", h.Reset)
	r.Handle("POST /api/v1/sessions/{id}/submit", h.Submit)
}

// HealthCheck 依赖检查，返回 nil 表示正常
type HealthCheck func(ctx context.Context) error

// RegisterHealthRoutes 健康检查；任一依赖异常返回 503
func (r *Router) RegisterHealthRoutes(checks map[string]HealthCheck) {
	r.Handle("GET /healthz", func(w http.ResponseWriter, req *http.Request) {
		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for _, name := range names {
			if err := checks[name](req.Context()); err != nil {
				r.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
				status[name] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}

		if code != http.StatusOK {
			writeJSON(w, code, Result[map[string]string]{Code: ResultError, Type: "error", Message: "unhealthy", Result: status})
			return
		}
		writeJSON(w, code, Ok(status))
	})
}
