package models

// Tag is a globally-named label shared across users. Names are stored
// trimmed and lower-cased, unique process-wide. Tags are linked to todos
// through task_tags (composite primary key, so no duplicate links) and
// survive the deletion of any todo that references them.
type Tag struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
