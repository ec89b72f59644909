package models

import "time"

// User represents an account in the system
// Password is stored hashed (bcrypt); never return plain in JSON responses
type User struct {
	ID        int       `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"` // Hashed; omitted from JSON
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RegisterRequest carries the /register form fields
// Password is plaintext here; it is hashed before insert
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest carries the /login form fields
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionUser is the identity resolved from a session cookie
// CSRF is the per-session token required on mutating POSTs
type SessionUser struct {
	ID       int    `json:"user_id"`
	Username string `json:"username"`
	CSRF     string `json:"csrf"`
}
