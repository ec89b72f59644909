package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"todo-service/models"

	"github.com/google/uuid" // For session IDs
	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt" // For pw hash/verify
)

// AuthHandler handles registration, login/logout and account deletion.
// Sessions are stored in the cache (Redis in production) keyed by a
// uuid session id carried in an httpOnly cookie.
type AuthHandler struct {
	db    *sqlx.DB
	cache cache.Cache
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *sqlx.DB, cache cache.Cache) *AuthHandler {
	return &AuthHandler{
		db:    db,
		cache: cache,
	}
}

// genSessionID generates a unique session ID for cookies
func genSessionID() string {
	return uuid.New().String()
}

// RegisterForm handles GET /register - the form itself is rendered by the
// frontend; this just confirms the endpoint and expected fields.
func (h *AuthHandler) RegisterForm(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "POST username and password to /register",
	})
}

// Register handles POST /register - creates an account with a bcrypt-hashed
// password. Duplicate usernames are checked explicitly up front so the
// caller gets a clean 409 instead of a raw constraint violation.
func (h *AuthHandler) Register(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if username == "" || password == "" {
		logRequest(ctx, "error", "Missing registration fields", zap.String("username", username))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Username and password are required"))
		return
	}

	logRequest(ctx, "info", "Registering user", zap.String("username", username))

	var existingID int
	err := h.db.QueryRow("SELECT id FROM users WHERE username = ?", username).Scan(&existingID)
	if err == nil {
		logRequest(ctx, "info", "Username already taken", zap.String("username", username))
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(errs.NewValidationError("Username already taken"))
		return
	}
	if err != sql.ErrNoRows {
		logRequest(ctx, "error", "Failed to check username", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}

	// Hash password with bcrypt (cost 12 for security)
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		logRequest(ctx, "error", "Password hashing failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to process password"))
		return
	}

	_, err = h.db.Exec("INSERT INTO users (username, password, created_at) VALUES (?, ?, ?)",
		username, string(hashedPassword), time.Now())
	if err != nil {
		logRequest(ctx, "error", "Failed to create user", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create user"))
		return
	}

	logRequest(ctx, "info", "User registered", zap.String("username", username))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginForm handles GET /login
func (h *AuthHandler) LoginForm(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "POST username and password to /login",
	})
}

// Login handles POST /login - verifies credentials (bcrypt), mints a uuid
// session with a CSRF token in the cache and sets an httpOnly cookie.
// Unknown user and wrong password get the same response.
func (h *AuthHandler) Login(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	var user models.User
	err := h.db.QueryRow("SELECT id, username, password FROM users WHERE username = ?", username).
		Scan(&user.ID, &user.Username, &user.Password)
	if err == sql.ErrNoRows {
		logRequest(ctx, "info", "Login failed, unknown user", zap.String("username", username))
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewAuthenticationError("Invalid credentials"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "DB error", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Server error"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		logRequest(ctx, "info", "Login failed, invalid password", zap.String("username", username))
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewAuthenticationError("Invalid credentials"))
		return
	}

	// Create session - store map directly (cache handles serialization
	// for Redis/memory)
	sessionID := genSessionID()
	sessionData := map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"csrf":     generateToken(),
	}
	h.cache.Set(sessionKeyPrefix+sessionID, sessionData, sessionTTL)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,  // Prevent JS access
		Secure:   false, // True in prod HTTPS
		MaxAge:   int(sessionTTL / time.Second),
	})

	logRequest(ctx, "info", "Login successful", zap.Int("user_id", user.ID))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /logout - drops the session from the cache and
// expires the cookie.
func (h *AuthHandler) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}
	if !checkCSRF(ctx, w, r, user) {
		return
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		h.cache.Delete(sessionKeyPrefix + cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	logRequest(ctx, "info", "Logged out", zap.Int("user_id", user.ID))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// DeleteAccount handles POST /delete_account - removes the authenticated
// user; lists, todos and tag links go with it via the FK cascade. Tag rows
// stay, tags are a shared namespace.
func (h *AuthHandler) DeleteAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}
	if !checkCSRF(ctx, w, r, user) {
		return
	}

	logRequest(ctx, "info", "Deleting account", zap.Int("user_id", user.ID))

	result, err := h.db.Exec("DELETE FROM users WHERE id = ?", user.ID)
	if err != nil {
		logRequest(ctx, "error", "Failed to delete account", zap.Error(err), zap.Int("user_id", user.ID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete account"))
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		logRequest(ctx, "info", "Account not found for deletion", zap.Int("user_id", user.ID))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Account not found"))
		return
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		h.cache.Delete(sessionKeyPrefix + cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	logRequest(ctx, "info", "Account deleted", zap.Int("user_id", user.ID))
	http.Redirect(w, r, "/register", http.StatusSeeOther)
}
