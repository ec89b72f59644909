package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"todo-service/models"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
)

// TaskHandler handles the todo operations. A todo's owner is resolved
// transitively through its list, so every check joins todos to todo_lists.
type TaskHandler struct {
	db    *sqlx.DB
	cache cache.Cache
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(db *sqlx.DB, cache cache.Cache) *TaskHandler {
	return &TaskHandler{
		db:    db,
		cache: cache,
	}
}

// resolveTaskOwner looks up a todo's list and the list's owner in one join.
// Returns sql.ErrNoRows when the todo id is absent.
func resolveTaskOwner(db *sqlx.DB, taskID int) (listID int, ownerID int, err error) {
	err = db.QueryRow(
		"SELECT t.list_id, l.user_id FROM todos t JOIN todo_lists l ON l.id = t.list_id WHERE t.id = ?", taskID).
		Scan(&listID, &ownerID)
	return listID, ownerID, err
}

// taskIDFromRequest parses the task_id path variable
func taskIDFromRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	vars := mux.Vars(r)
	idStr := vars[key]
	id, err := strconv.Atoi(idStr)
	if err != nil {
		logRequest(ctx, "error", "Invalid task ID", zap.String("id", idStr))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid task ID"))
		return 0, false
	}
	return id, true
}

// authorizeTask resolves the task and asserts the session user owns it.
// Writes the 404/403/500 response itself; ok=false means the handler is done.
func authorizeTask(ctx context.Context, w http.ResponseWriter, db *sqlx.DB, taskID int, userID int) (listID int, ok bool) {
	listID, ownerID, err := resolveTaskOwner(db, taskID)
	if err == sql.ErrNoRows {
		logRequest(ctx, "info", "Task not found", zap.Int("task_id", taskID))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Task not found"))
		return 0, false
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to resolve task", zap.Error(err), zap.Int("task_id", taskID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return 0, false
	}
	if ownerID != userID {
		logRequest(ctx, "info", "Task owned by another user", zap.Int("task_id", taskID), zap.Int("user_id", userID))
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return 0, false
	}
	return listID, true
}

// AddTask handles POST /list/{list_id}/add_task - creates a todo under an
// owned list, completed=false.
func (h *TaskHandler) AddTask(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}
	if !checkCSRF(ctx, w, r, user) {
		return
	}

	vars := mux.Vars(r)
	idStr := vars["list_id"]
	listID, err := strconv.Atoi(idStr)
	if err != nil {
		logRequest(ctx, "error", "Invalid list ID", zap.String("id", idStr))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid list ID"))
		return
	}

	var ownerID int
	err = h.db.QueryRow("SELECT user_id FROM todo_lists WHERE id = ?", listID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		logRequest(ctx, "info", "List not found", zap.Int("list_id", listID))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("List not found"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to query list", zap.Error(err), zap.Int("list_id", listID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	if ownerID != user.ID {
		logRequest(ctx, "info", "List owned by another user", zap.Int("list_id", listID), zap.Int("user_id", user.ID))
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	content := strings.TrimSpace(r.PostFormValue("task_name"))
	if content == "" {
		logRequest(ctx, "error", "Empty task content", zap.Int("list_id", listID))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Task content is required"))
		return
	}

	_, err = h.db.Exec("INSERT INTO todos (content, completed, list_id, created_at) VALUES (?, 0, ?, ?)",
		content, listID, time.Now())
	if err != nil {
		logRequest(ctx, "error", "Failed to create task", zap.Error(err), zap.Int("list_id", listID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create task"))
		return
	}

	logRequest(ctx, "info", "Task created", zap.Int("list_id", listID))
	http.Redirect(w, r, "/list/"+strconv.Itoa(listID), http.StatusSeeOther)
}

// ToggleTask handles POST /update_task/{task_id} - flips the completed flag
func (h *TaskHandler) ToggleTask(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}
	if !checkCSRF(ctx, w, r, user) {
		return
	}

	id, ok := taskIDFromRequest(ctx, w, r, "task_id")
	if !ok {
		return
	}
	listID, ok := authorizeTask(ctx, w, h.db, id, user.ID)
	if !ok {
		return
	}

	if _, err := h.db.Exec("UPDATE todos SET completed = NOT completed WHERE id = ?", id); err != nil {
		logRequest(ctx, "error", "Failed to toggle task", zap.Error(err), zap.Int("task_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update task"))
		return
	}

	logRequest(ctx, "info", "Task toggled", zap.Int("task_id", id))
	http.Redirect(w, r, "/list/"+strconv.Itoa(listID), http.StatusSeeOther)
}

// EditTaskForm handles GET /edit/{id} - the current task, for the edit form
func (h *TaskHandler) EditTaskForm(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}

	id, ok := taskIDFromRequest(ctx, w, r, "id")
	if !ok {
		return
	}
	if _, ok := authorizeTask(ctx, w, h.db, id, user.ID); !ok {
		return
	}

	var task models.Todo
	err := h.db.QueryRow("SELECT id, content, completed, list_id, created_at FROM todos WHERE id = ?", id).
		Scan(&task.ID, &task.Content, &task.Completed, &task.ListID, &task.CreatedAt)
	if err != nil {
		logRequest(ctx, "error", "Failed to query task", zap.Error(err), zap.Int("task_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(task)
}

// EditTask handles POST /edit/{id} - replaces the task content. Resolve,
// ownership check and update run in one transaction so a concurrent delete
// surfaces as 404 rather than a half-applied write; any commit failure
// rolls back and maps to a 500.
func (h *TaskHandler) EditTask(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}
	if !checkCSRF(ctx, w, r, user) {
		return
	}

	id, ok := taskIDFromRequest(ctx, w, r, "id")
	if !ok {
		return
	}

	content := strings.TrimSpace(r.PostFormValue("content"))
	if content == "" {
		logRequest(ctx, "error", "Empty task content", zap.Int("task_id", id))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Task content is required"))
		return
	}

	tx, err := h.db.Beginx()
	if err != nil {
		logRequest(ctx, "error", "Failed to begin transaction", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}

	var listID, ownerID int
	err = tx.QueryRow(
		"SELECT t.list_id, l.user_id FROM todos t JOIN todo_lists l ON l.id = t.list_id WHERE t.id = ?", id).
		Scan(&listID, &ownerID)
	if err == sql.ErrNoRows {
		tx.Rollback()
		logRequest(ctx, "info", "Task not found", zap.Int("task_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Task not found"))
		return
	}
	if err != nil {
		tx.Rollback()
		logRequest(ctx, "error", "Failed to resolve task", zap.Error(err), zap.Int("task_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	if ownerID != user.ID {
		tx.Rollback()
		logRequest(ctx, "info", "Task owned by another user", zap.Int("task_id", id), zap.Int("user_id", user.ID))
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	if _, err := tx.Exec("UPDATE todos SET content = ? WHERE id = ?", content, id); err != nil {
		tx.Rollback()
		logRequest(ctx, "error", "Failed to update task", zap.Error(err), zap.Int("task_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update task"))
		return
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		logRequest(ctx, "error", "Failed to commit task update", zap.Error(err), zap.Int("task_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update task"))
		return
	}

	logRequest(ctx, "info", "Task updated", zap.Int("task_id", id))
	// Back to the task's list, consistent with the other task mutations
	http.Redirect(w, r, "/list/"+strconv.Itoa(listID), http.StatusSeeOther)
}

// DeleteTask handles POST /delete_task/{task_id} - deletes the todo; its
// tag links go via the FK cascade, the tag rows themselves persist.
func (h *TaskHandler) DeleteTask(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}
	if !checkCSRF(ctx, w, r, user) {
		return
	}

	id, ok := taskIDFromRequest(ctx, w, r, "task_id")
	if !ok {
		return
	}
	listID, ok := authorizeTask(ctx, w, h.db, id, user.ID)
	if !ok {
		return
	}

	if _, err := h.db.Exec("DELETE FROM todos WHERE id = ?", id); err != nil {
		logRequest(ctx, "error", "Failed to delete task", zap.Error(err), zap.Int("task_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete task"))
		return
	}

	logRequest(ctx, "info", "Task deleted", zap.Int("task_id", id))
	http.Redirect(w, r, "/list/"+strconv.Itoa(listID), http.StatusSeeOther)
}
