// Package http exposes the vetting pipeline over REST: applicant-facing
// endpoints for submitting applications and taking tests, and an
// admin surface guarded by a shared secret.
package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gradlink-hub/mentor-vetting/config"
	"github.com/gradlink-hub/mentor-vetting/internal/application/command"
	"github.com/gradlink-hub/mentor-vetting/internal/application/query"
	"github.com/gradlink-hub/mentor-vetting/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Addr string

	// AdminToken is the shared secret for the admin endpoints. Empty
	// disables the admin surface entirely.
	AdminToken string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	EnableCORS     bool
	AllowedOrigins []string

	// RateLimitPerMinute caps requests per client IP; 0 disables.
	RateLimitPerMinute int
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:               ":8080",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
	}
}

// ConfigFrom builds a server Config from the application's HTTP settings.
func ConfigFrom(hc config.HTTPConfig) Config {
	c := DefaultConfig()
	c.Addr = hc.Addr
	c.AdminToken = hc.AdminToken
	c.ReadTimeout = hc.ReadTimeout
	c.WriteTimeout = hc.WriteTimeout
	c.IdleTimeout = hc.IdleTimeout
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// HealthStatus is the aggregated health report exposed on /health.
type HealthStatus struct {
	Healthy bool              `json:"healthy"`
	Ready   bool              `json:"ready"`
	Message string            `json:"message,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthChecker reports on the server's backing services.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Dependencies contains all handlers required by the HTTP endpoints.
type Dependencies struct {
	SubmitApplication *command.SubmitApplicationHandler
	SendTest          *command.SendTestHandler
	OpenSession       *command.OpenSessionHandler
	GradeSubmission   *command.GradeSubmissionHandler
	RequestRetry      *command.RequestRetryHandler

	GetApplicationStatus *query.GetApplicationStatusHandler
	ListApplications     *query.ListApplicationsHandler

	Logger        *logger.Logger
	Flags         *config.FeatureFlags
	HealthChecker HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server serves the vetting REST API.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *logger.Logger

	limiter *rateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer wires routes, middleware, and the underlying http.Server.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}

	if s.logger == nil {
		s.logger = logger.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))

	if config.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.routes()

	s.httpServer = &http.Server{
		Addr:           config.Addr,
		Handler:        s.middleware(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

func (s *Server) routes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth) // Kubernetes alias
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /", s.handleRoot)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Applicant Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("POST /api/v1/applications", s.handleSubmitApplication)
	s.router.HandleFunc("GET /api/v1/applications/status", s.handleApplicationStatus)
	s.router.HandleFunc("POST /api/v1/applications/retry", s.handleRequestRetry)
	s.router.HandleFunc("GET /api/v1/test/{token}", s.handleOpenTest)
	s.router.HandleFunc("POST /api/v1/test/{token}/submit", s.handleSubmitTest)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Admin Endpoints (shared secret)
	// ─────────────────────────────────────────────────────────────────────────
	s.router.Handle("GET /api/v1/admin/applications",
		s.requireAdmin(http.HandlerFunc(s.handleListApplications)))
	s.router.Handle("POST /api/v1/admin/applications/{id}/send-test",
		s.requireAdmin(http.HandlerFunc(s.handleSendTest)))
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// middleware stacks the cross-cutting wrappers. Listed outermost first:
// rate limit, CORS, recovery, logging, request id.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.withRequestID(h)
	h = s.withLogging(h)
	h = s.withRecovery(h)
	if s.config.EnableCORS {
		h = s.withCORS(h)
	}
	if s.limiter != nil {
		h = s.withRateLimit(h)
	}
	return h
}

// withRequestID tags every request with an id, honoring a caller-supplied
// X-Request-ID. The id travels in the response header, the request
// context, and a derived logger attached to the same context.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.statusCode),
			logger.Latency(time.Since(start)),
			logger.String("ip", clientIP(r)),
		)
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("panic recovered",
					logger.F("error", v),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" && r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		for _, o := range s.config.AllowedOrigins {
			if o != "*" && o != origin {
				continue
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Token, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
			break
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(s.limiter.window.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", retryAfter)
			writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin guards admin endpoints with the shared secret header. The
// comparison is constant-time; an unset token closes the surface with a
// 404 so probing cannot distinguish "wrong token" from "no admin API".
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AdminToken == "" {
			writeJSONError(w, http.StatusNotFound, "not_found", "Not found")
			return
		}

		provided := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.config.AdminToken)) != 1 {
			s.logger.Warn("admin auth failed", logger.String("ip", clientIP(r)))
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start serves until Shutdown; a clean close returns nil.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("addr", s.config.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync serves on a goroutine; the channel closes on exit and
// carries at most one error.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime since Start, zero when stopped.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address is the configured listen address.
func (s *Server) Address() string {
	return s.config.Addr
}

// Handler exposes the fully wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope every endpoint writes.
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError pairs a machine-readable code with a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{
		Error: &APIError{Code: code, Message: message},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// requestIDFrom reads the id planted by withRequestID; "" outside it.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// responseWriter captures the status code for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func getQueryParam(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func getQueryParamInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// rateLimiter counts requests per key in fixed windows. Cheap and good
// enough for abuse damping; precise shaping belongs at the edge.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	counts  map[string]int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		counts:  make(map[string]int),
		resetAt: time.Now().Add(window),
	}
}

// Allow reports whether key has budget left in the current window.
func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now := time.Now(); now.After(rl.resetAt) {
		rl.counts = make(map[string]int)
		rl.resetAt = now.Add(rl.window)
	}

	if rl.counts[key] >= rl.limit {
		return false
	}
	rl.counts[key]++
	return true
}
