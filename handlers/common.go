package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"todo-service/models"

	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/httpserver"
	logger "github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

const (
	sessionCookieName = "session_id"
	sessionKeyPrefix  = "session:"
	sessionTTL        = 24 * time.Hour
)

// logRequest logs the request with route/auth details from the httpserver
// context. Shared package-level helper used by every handler.
func logRequest(ctx context.Context, level string, message string, fields ...zap.Field) {
	routeName := httpserver.GetRouteName(ctx)
	method := httpserver.GetRouteMethod(ctx)
	path := httpserver.GetRoutePath(ctx)
	auth := httpserver.GetRequestAuth(ctx)

	logMsg := time.Now().Format("2006-01-02 15:04:05") + " - " + routeName + " - " + method + " - " + path
	if auth != nil {
		logMsg += " - user:" + auth.Client
	}
	if message != "" {
		logMsg += " - " + message
	}

	allFields := append([]zap.Field{
		zap.String("route", routeName),
		zap.String("method", method),
		zap.String("path", path),
	}, fields...)

	switch level {
	case "info":
		logger.Info(logMsg, allFields...)
	case "error":
		logger.Error(logMsg, allFields...)
	case "debug":
		logger.Debug(logMsg, allFields...)
	}
}

// generateToken generates a cryptographically secure random hex token,
// used for CSRF tokens bound to a session.
func generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// Fallback
		return hex.EncodeToString([]byte(time.Now().String()))[:40]
	}
	return hex.EncodeToString(b)
}

// SessionUserFromRequest resolves the session cookie through the cache.
// The cache may hand back the stored map directly (memory) or a JSON
// string/bytes (Redis), and numbers arrive as float64 after a JSON
// round-trip, so both shapes are handled.
func SessionUserFromRequest(r *http.Request, c cache.Cache) (*models.SessionUser, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, fmt.Errorf("no session cookie")
	}

	raw, err := c.Get(sessionKeyPrefix + cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("session expired or invalid")
	}

	var data map[string]interface{}
	switch v := raw.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &data); err != nil {
			return nil, fmt.Errorf("invalid session data")
		}
	case []byte:
		if err := json.Unmarshal(v, &data); err != nil {
			return nil, fmt.Errorf("invalid session data")
		}
	case map[string]interface{}:
		data = v
	default:
		return nil, fmt.Errorf("unexpected session type")
	}

	user := &models.SessionUser{}
	switch uid := data["user_id"].(type) {
	case int:
		user.ID = uid
	case int64:
		user.ID = int(uid)
	case float64:
		user.ID = int(uid)
	default:
		return nil, fmt.Errorf("session missing user_id")
	}
	if name, ok := data["username"].(string); ok {
		user.Username = name
	}
	if token, ok := data["csrf"].(string); ok {
		user.CSRF = token
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("session missing user_id")
	}
	return user, nil
}

// requireSession gates a protected handler. Unauthenticated callers are
// redirected to the login page; the handler must return when nil comes back.
func requireSession(ctx context.Context, w http.ResponseWriter, r *http.Request, c cache.Cache) *models.SessionUser {
	user, err := SessionUserFromRequest(r, c)
	if err != nil {
		logRequest(ctx, "info", "Auth required, redirecting to login")
		http.Redirect(w, r, "/login", http.StatusFound)
		return nil
	}
	return user
}

// checkCSRF validates the csrf_token form field on mutating POSTs against
// the token minted at login. Mismatch is terminal for the request.
func checkCSRF(ctx context.Context, w http.ResponseWriter, r *http.Request, user *models.SessionUser) bool {
	token := r.PostFormValue("csrf_token")
	if token == "" || token != user.CSRF {
		logRequest(ctx, "error", "CSRF token mismatch", zap.Int("user_id", user.ID))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}
