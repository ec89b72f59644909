package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/logger"
	"golang.org/x/crypto/bcrypt"
)

const schemaFile = "../database/migrations/20250901000000_create_todo_schema.sql"

func TestMain(m *testing.M) {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})
	os.Exit(m.Run())
}

// setupTestDB creates an in-memory database and applies the schema from the
// same migration file the server uses
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	// A second pool connection would see a different :memory: database
	db.SetMaxOpenConns(1)

	schema, err := os.ReadFile(schemaFile)
	if err != nil {
		db.Close()
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		db.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// newTestCache creates a memory-backed cache for the session registry
func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.New(cache.Config{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create test cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// createTestUser inserts a user with a bcrypt-hashed password.
// MinCost keeps the test suite fast.
func createTestUser(t *testing.T, db *sqlx.DB, username, password string) int {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	result, err := db.Exec("INSERT INTO users (username, password, created_at) VALUES (?, ?, ?)",
		username, string(hash), time.Now())
	if err != nil {
		t.Fatalf("Failed to create user %q: %v", username, err)
	}
	id, _ := result.LastInsertId()
	return int(id)
}

func createTestList(t *testing.T, db *sqlx.DB, name string, userID int) int {
	t.Helper()
	result, err := db.Exec("INSERT INTO todo_lists (name, user_id, created_at) VALUES (?, ?, ?)",
		name, userID, time.Now())
	if err != nil {
		t.Fatalf("Failed to create list %q: %v", name, err)
	}
	id, _ := result.LastInsertId()
	return int(id)
}

func createTestTask(t *testing.T, db *sqlx.DB, content string, listID int) int {
	t.Helper()
	result, err := db.Exec("INSERT INTO todos (content, completed, list_id, created_at) VALUES (?, 0, ?, ?)",
		content, listID, time.Now())
	if err != nil {
		t.Fatalf("Failed to create task %q: %v", content, err)
	}
	id, _ := result.LastInsertId()
	return int(id)
}

// startSession stores a session record in the cache the same way Login does
// and returns the session id and its CSRF token
func startSession(t *testing.T, c cache.Cache, userID int, username string) (string, string) {
	t.Helper()
	sessionID := genSessionID()
	csrf := generateToken()
	c.Set(sessionKeyPrefix+sessionID, map[string]interface{}{
		"user_id":  userID,
		"username": username,
		"csrf":     csrf,
	}, sessionTTL)
	return sessionID, csrf
}

// postForm builds a form-encoded POST with optional session cookie and
// mux path variables
func postForm(sessionID, path string, form url.Values, vars map[string]string) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sessionID})
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func getRequest(sessionID, path string, vars map[string]string) *http.Request {
	req := httptest.NewRequest("GET", path, nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sessionID})
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

// do invokes a handler with a fresh recorder
func do(h func(context.Context, http.ResponseWriter, *http.Request), r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(context.Background(), w, r)
	return w
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func countRows(t *testing.T, db *sqlx.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Count query failed: %v", err)
	}
	return n
}
