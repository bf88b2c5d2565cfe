package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"tokenshop-backend/internal/config"
	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
	"tokenshop-backend/internal/repository"
	"tokenshop-backend/internal/security"
)

type AuthMiddleware struct {
	tokenManager security.TokenManager
	userRepo     repository.UserRepository
}

func NewAuthMiddleware(tm security.TokenManager, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm, userRepo: userRepo}
}

// Handler authenticates requests according to the route's security level.
// It must be installed with Router.Use so the matched route is known.
func (a *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		template := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				template = tpl
			}
		}

		level := config.GetSecurityLevel(r.Method, template)
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			writeError(w, r, domain.ErrAuthenticationRequired)
			return
		}
		claims, err := a.tokenManager.ValidateToken(token)
		if err != nil {
			logger.Debug("Token rejected", "path", r.URL.Path, "error", err)
			writeError(w, r, domain.ErrAuthenticationRequired)
			return
		}

		if level == config.SecurityAdmin {
			user, err := a.userRepo.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if domain.IsNotFound(err) {
					writeError(w, r, domain.ErrAuthenticationRequired)
					return
				}
				writeError(w, r, err)
				return
			}
			if !user.IsAdmin {
				logger.Warn("Admin route denied", "user_id", claims.UserID, "route", template)
				writeError(w, r, domain.ErrForbidden)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

func extractToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = token[7:]
	}
	return strings.TrimSpace(token)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if rec.status >= http.StatusInternalServerError {
			logger.Error("HTTP request", args...)
		} else {
			logger.Info("HTTP request", args...)
		}
	})
}

// RecoveryMiddleware turns handler panics into 500 responses.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Handler panicked", "path", r.URL.Path, "panic", p)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
