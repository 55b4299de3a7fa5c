package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/splax/userseed/internal/domain"
	"github.com/splax/userseed/internal/service/seed"
)

type authContextKey string

type authInfo struct {
	UserID string
	Role   string
}

const contextKeyAuth authContextKey = "userseed-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request has a valid bearer token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		r.forward(w, req.WithContext(ctx), next)
	}
}

// optionalAuth resolves a bearer token when one is sent. Requests without a
// usable token continue anonymously.
func (r *Router) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if strings.TrimSpace(req.Header.Get("Authorization")) == "" {
			next(w, req)
			return
		}
		ctx, _, err := r.resolveAuth(req)
		if err != nil {
			r.logger.Warn("ignoring invalid bearer token", "error", err, "path", req.URL.Path)
			next(w, req)
			return
		}
		r.forward(w, req.WithContext(ctx), next)
	}
}

// requireAdmin ensures an authenticated admin before invoking the handler.
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(func(w http.ResponseWriter, req *http.Request) {
		info, ok := authInfoFromContext(req.Context())
		if !ok || info.Role != domain.RoleAdmin {
			r.logger.Warn("admin role required", "path", req.URL.Path, "user_id", info.UserID)
			writeError(w, http.StatusForbidden, seed.MessagePermissionDenied)
			return
		}
		next(w, req)
	})
}

func (r *Router) forward(w http.ResponseWriter, req *http.Request, next http.HandlerFunc) {
	if setter, ok := w.(contextSetter); ok {
		setter.SetContext(req.Context())
	}
	next(w, req)
}

var errBadAuthHeader = errors.New("authorization header invalid")

// ensureAuth validates the Authorization header and enriches the context,
// answering 401 when it cannot.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, authInfo, bool) {
	ctx, info, err := r.resolveAuth(req)
	if err != nil {
		r.logger.Warn("authentication rejected", "error", err, "path", req.URL.Path)
		if errors.Is(err, errBadAuthHeader) {
			writeError(w, http.StatusUnauthorized, "authentication required")
		} else {
			writeError(w, http.StatusUnauthorized, "authentication failed")
		}
		return req.Context(), authInfo{}, false
	}
	return ctx, info, true
}

func (r *Router) resolveAuth(req *http.Request) (context.Context, authInfo, error) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		return req.Context(), authInfo{}, fmt.Errorf("%w: %v", errBadAuthHeader, err)
	}
	user, _, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		return req.Context(), authInfo{}, err
	}
	info := authInfo{UserID: user.ID, Role: user.Role}
	return context.WithValue(req.Context(), contextKeyAuth, info), info, nil
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
