package models

import "time"

// TodoList is a named collection of tasks owned by exactly one user.
// user_id is NOT NULL with ON DELETE CASCADE, so deleting a user removes
// the list and, transitively, its todos.
type TodoList struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	UserID    int       `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ListDetail is the GET /list/{id} response: the list plus its tasks
type ListDetail struct {
	TodoList
	Tasks []Todo `json:"tasks"`
}
