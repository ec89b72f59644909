package models

import "time"

// Todo is a unit of work inside a list. Its effective owner is the owner
// of its list; every ownership check resolves through list_id.
type Todo struct {
	ID        int       `json:"id" db:"id"`
	Content   string    `json:"content" db:"content"`
	Completed bool      `json:"completed" db:"completed"`
	ListID    int       `json:"list_id" db:"list_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Tags      []Tag     `json:"tags,omitempty" db:"-"`
}
