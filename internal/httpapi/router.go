package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Router 使用标准库 http.ServeMux
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

// ServeHTTP 所有响应都带 CORS 头，预检请求直接返回
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	r.mux.ServeHTTP(w, req)
}

// NewCommandLimiter perSecond <= 0 表示不限流
func NewCommandLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

func (r *Router) limited(l *rate.Limiter, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !l.Allow() {
			r.logger.Warn("Command rate limited", zap.String("path", req.URL.Path), zap.String("remote", req.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, Fail("too many commands, slow down"))
			return
		}
		h(w, req)
	}
}

// pathTail 取前缀之后的单段路径，多段或为空时返回 false
func pathTail(path, prefix string) (string, bool) {
	tail := strings.TrimPrefix(path, prefix)
	if tail == "" || tail == path || strings.Contains(tail, "/") {
		return "", false
	}
	return tail, true
}

// RegisterRoutes 注册网关全部路由
func (r *Router) RegisterRoutes(h *Handler, limiter *rate.Limiter) {
	r.Handle("/ws", h.streams.ServeWS)

	r.Handle("/generate_waypoint", method(http.MethodPost, r.limited(limiter, h.GenerateWaypoint)))
	r.Handle("/send_mission_command", method(http.MethodPost, r.limited(limiter, h.SendMissionCommand)))

	r.Handle("/reload-ai-data", method(http.MethodPost, h.ReloadTelemetry))
	r.Handle("/get-all-ai-info", method(http.MethodGet, h.GetAllTelemetry))
	r.Handle("/get-info/", method(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
		name, ok := pathTail(req.URL.Path, "/get-info/")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.GetTelemetry(w, req, name)
	}))
	r.Handle("/get-image-info/", method(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
		name, ok := pathTail(req.URL.Path, "/get-image-info/")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.GetFreshTelemetry(w, req, name)
	}))

	r.Handle("/command-log", method(http.MethodGet, h.CommandLog))
	r.Handle("/status", method(http.MethodGet, h.Status))
}
