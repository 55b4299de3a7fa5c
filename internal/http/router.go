package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/userseed/internal/domain"
	"github.com/splax/userseed/internal/service/auth"
	"github.com/splax/userseed/internal/service/seed"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux             *http.ServeMux
	logger          *slog.Logger
	auth            auth.Service
	seed            seed.Service
	limiter         RateLimiter
	requireSeedAuth bool
	dbHealth        func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	reseedTotal        *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateLimitLogin     = 12
	rateLimitSeed      = 10
	healthCheckTimeout = 2 * time.Second

	messageSeedFailed  = "Failed to seed users."
	messageLoginFailed = "Login failed."
)

// NewRouter assembles routes with dependencies. With requireSeedAuth set,
// reseeding additionally needs an admin bearer token.
func NewRouter(logger *slog.Logger, authSvc auth.Service, seedSvc seed.Service, limiter RateLimiter, requireSeedAuth bool, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:             http.NewServeMux(),
		logger:          logger,
		auth:            authSvc,
		seed:            seedSvc,
		limiter:         limiter,
		requireSeedAuth: requireSeedAuth,
		dbHealth:        dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/seed/users", r.audit("/seed/users", r.seedAccess(r.withRateLimit("/seed/users", rateLimitSeed, rateWindowDefault, rateLimitKeyActor, r.handleSeedUsers))))
}

// seedAccess picks the authentication policy for the reseed route.
func (r *Router) seedAccess(next http.HandlerFunc) http.HandlerFunc {
	if r.requireSeedAuth {
		return r.requireAdmin(next)
	}
	return r.optionalAuth(next)
}

func (r *Router) handleSeedUsers(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	result, err := r.seed.ReseedUsers(req.Context(), requestActor(req))
	if err != nil {
		var authErr *seed.AuthorizationError
		if errors.As(err, &authErr) {
			r.recordReseed(reseedDenied)
			writeError(w, authErr.StatusCode(), authErr.Message())
			return
		}
		r.recordReseed(reseedFailed)
		writeError(w, http.StatusInternalServerError, messageSeedFailed)
		return
	}
	r.recordReseed(reseedSucceeded)
	writeSuccess(w, http.StatusCreated, seed.MessageUsersInserted, map[string]any{
		"insertedUsers": marshalUsers(result.Inserted),
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		r.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, messageLoginFailed)
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful.", map[string]any{
		"user": marshalUser(*user),
		"tokens": map[string]any{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_in":    int(tokens.ExpiresIn / time.Second),
		},
	})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// marshalUsers shapes users for responses. Password hashes never leave the API.
func marshalUsers(users []domain.User) []map[string]any {
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, marshalUser(u))
	}
	return out
}

func marshalUser(u domain.User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"role":      u.Role,
		"createdAt": u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// requestActor names the caller for audit records.
func requestActor(req *http.Request) string {
	if info, ok := authInfoFromContext(req.Context()); ok {
		return "user:" + info.UserID
	}
	if ip := remoteIP(req); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		fields = append(fields, "ip", remoteIP(req))
		if fwd := clientIP(req); fwd != remoteIP(req) {
			fields = append(fields, "forwarded_for", fwd)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID, "role", info.Role)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// remoteIP is the peer address of the connection.
func remoteIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

// clientIP prefers X-Forwarded-For and is only fit for log fields.
func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	return remoteIP(req)
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
