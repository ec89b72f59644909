package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestRegisterCreatesHashedUser(t *testing.T) {
	db := setupTestDB(t)
	c := newTestCache(t)
	h := NewAuthHandler(db, c)

	form := url.Values{"username": {"alice"}, "password": {"pw1"}}
	w := do(h.Register, postForm("", "/register", form, nil))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303 redirect, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Expected redirect to /login, got %q", loc)
	}

	var stored string
	if err := db.QueryRow("SELECT password FROM users WHERE username = ?", "alice").Scan(&stored); err != nil {
		t.Fatalf("User was not created: %v", err)
	}
	if stored == "pw1" {
		t.Error("Password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte("pw1")); err != nil {
		t.Errorf("Stored hash does not verify against the password: %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	db := setupTestDB(t)
	c := newTestCache(t)
	h := NewAuthHandler(db, c)

	form := url.Values{"username": {"alice"}, "password": {"pw1"}}
	if w := do(h.Register, postForm("", "/register", form, nil)); w.Code != http.StatusSeeOther {
		t.Fatalf("First registration failed: %d", w.Code)
	}

	form = url.Values{"username": {"alice"}, "password": {"other"}}
	w := do(h.Register, postForm("", "/register", form, nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for duplicate username, got %d", w.Code)
	}

	if n := countRows(t, db, "SELECT COUNT(*) FROM users WHERE username = ?", "alice"); n != 1 {
		t.Errorf("Expected 1 alice row, got %d", n)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	db := setupTestDB(t)
	c := newTestCache(t)
	h := NewAuthHandler(db, c)

	w := do(h.Register, postForm("", "/register", url.Values{"username": {"alice"}}, nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing password, got %d", w.Code)
	}
	w = do(h.Register, postForm("", "/register", url.Values{"password": {"pw"}}, nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing username, got %d", w.Code)
	}
}

func TestLoginEstablishesSession(t *testing.T) {
	db := setupTestDB(t)
	c := newTestCache(t)
	h := NewAuthHandler(db, c)
	createTestUser(t, db, "alice", "pw1")

	form := url.Values{"username": {"alice"}, "password": {"pw1"}}
	w := do(h.Login, postForm("", "/login", form, nil))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303 redirect, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Expected redirect home, got %q", loc)
	}

	cookies := w.Result().Cookies()
	var sessionID string
	for _, cookie := range cookies {
		if cookie.Name == sessionCookieName {
			sessionID = cookie.Value
			if !cookie.HttpOnly {
				t.Error("Session cookie should be httpOnly")
			}
		}
	}
	if sessionID == "" {
		t.Fatal("No session cookie set")
	}

	req := getRequest(sessionID, "/", nil)
	user, err := SessionUserFromRequest(req, c)
	if err != nil {
		t.Fatalf("Session did not resolve: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Expected session user alice, got %q", user.Username)
	}
	if user.CSRF == "" {
		t.Error("Session should carry a CSRF token")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	db := setupTestDB(t)
	c := newTestCache(t)
	h := NewAuthHandler(db, c)
	createTestUser(t, db, "alice", "pw1")

	// Wrong password and unknown user must both come back 401
	w := do(h.Login, postForm("", "/login", url.Values{"username": {"alice"}, "password": {"wrong"}}, nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", w.Code)
	}
	w = do(h.Login, postForm("", "/login", url.Values{"username": {"nobody"}, "password": {"pw1"}}, nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for unknown user, got %d", w.Code)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	db := setupTestDB(t)
	c := newTestCache(t)
	h := NewAuthHandler(db, c)
	userID := createTestUser(t, db, "alice", "pw1")
	sessionID, csrf := startSession(t, c, userID, "alice")

	form := url.Values{"csrf_token": {csrf}}
	w := do(h.Logout, postForm(sessionID, "/logout", form, nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303 redirect, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Expected redirect to /login, got %q", loc)
	}

	req := getRequest(sessionID, "/", nil)
	if _, err := SessionUserFromRequest(req, c); err == nil {
		t.Error("Session should be gone after logout")
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	db := setupTestDB(t)
	c := newTestCache(t)
	authHandler := NewAuthHandler(db, c)
	tagHandler := NewTagHandler(db, c)

	aliceID := createTestUser(t, db, "alice", "pw1")
	bobID := createTestUser(t, db, "bob", "pw2")
	aliceList := createTestList(t, db, "Groceries", aliceID)
	aliceTask := createTestTask(t, db, "milk", aliceList)
	bobList := createTestList(t, db, "Chores", bobID)
	bobTask := createTestTask(t, db, "dishes", bobList)

	aliceSession, aliceCSRF := startSession(t, c, aliceID, "alice")
	bobSession, bobCSRF := startSession(t, c, bobID, "bob")

	// Both users attach the shared "urgent" tag
	form := url.Values{"tag_name": {"urgent"}, "csrf_token": {aliceCSRF}}
	do(tagHandler.AddTag, postForm(aliceSession, "/add_tag/1", form, map[string]string{"task_id": itoa(aliceTask)}))
	form = url.Values{"tag_name": {"urgent"}, "csrf_token": {bobCSRF}}
	do(tagHandler.AddTag, postForm(bobSession, "/add_tag/2", form, map[string]string{"task_id": itoa(bobTask)}))

	w := do(authHandler.DeleteAccount, postForm(aliceSession, "/delete_account", url.Values{"csrf_token": {aliceCSRF}}, nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303 redirect, got %d", w.Code)
	}

	if n := countRows(t, db, "SELECT COUNT(*) FROM todo_lists WHERE user_id = ?", aliceID); n != 0 {
		t.Errorf("Expected alice's lists gone, found %d", n)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM todos WHERE list_id = ?", aliceList); n != 0 {
		t.Errorf("Expected alice's todos gone, found %d", n)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM task_tags WHERE task_id = ?", aliceTask); n != 0 {
		t.Errorf("Expected alice's tag links gone, found %d", n)
	}
	// The shared tag and bob's data are untouched
	if n := countRows(t, db, "SELECT COUNT(*) FROM tags WHERE name = ?", "urgent"); n != 1 {
		t.Errorf("Expected shared tag row to survive, found %d", n)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM todos WHERE list_id = ?", bobList); n != 1 {
		t.Errorf("Expected bob's todos intact, found %d", n)
	}
}
