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

// ListHandler handles the todo-list operations. Every entity-scoped
// operation resolves the list first, then asserts the session user owns it.
type ListHandler struct {
	db    *sqlx.DB
	cache cache.Cache
}

// NewListHandler creates a new list handler
func NewListHandler(db *sqlx.DB, cache cache.Cache) *ListHandler {
	return &ListHandler{
		db:    db,
		cache: cache,
	}
}

// Home handles GET / - all lists owned by the session user
func (h *ListHandler) Home(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}

	logRequest(ctx, "info", "Listing todo lists", zap.Int("user_id", user.ID))

	rows, err := h.db.Query("SELECT id, name, user_id, created_at FROM todo_lists WHERE user_id = ? ORDER BY created_at", user.ID)
	if err != nil {
		logRequest(ctx, "error", "Failed to query lists", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	defer rows.Close()

	lists := []models.TodoList{}
	for rows.Next() {
		var list models.TodoList
		if err := rows.Scan(&list.ID, &list.Name, &list.UserID, &list.CreatedAt); err != nil {
			logRequest(ctx, "error", "Failed to scan list", zap.Error(err))
			continue
		}
		lists = append(lists, list)
	}

	logRequest(ctx, "info", "Lists retrieved", zap.Int("count", len(lists)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lists)
}

// ListDetail handles GET /list/{list_id} - the list plus its tasks and
// their tags. 404 if the id is absent, 403 if another user owns it.
func (h *ListHandler) ListDetail(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}

	vars := mux.Vars(r)
	idStr := vars["list_id"]
	id, err := strconv.Atoi(idStr)
	if err != nil {
		logRequest(ctx, "error", "Invalid list ID", zap.String("id", idStr))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid list ID"))
		return
	}

	var detail models.ListDetail
	err = h.db.QueryRow("SELECT id, name, user_id, created_at FROM todo_lists WHERE id = ?", id).
		Scan(&detail.ID, &detail.Name, &detail.UserID, &detail.CreatedAt)
	if err == sql.ErrNoRows {
		logRequest(ctx, "info", "List not found", zap.Int("list_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("List not found"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to query list", zap.Error(err), zap.Int("list_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}

	if detail.UserID != user.ID {
		logRequest(ctx, "info", "List owned by another user", zap.Int("list_id", id), zap.Int("user_id", user.ID))
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	rows, err := h.db.Query("SELECT id, content, completed, list_id, created_at FROM todos WHERE list_id = ? ORDER BY created_at", id)
	if err != nil {
		logRequest(ctx, "error", "Failed to query tasks", zap.Error(err), zap.Int("list_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	defer rows.Close()

	detail.Tasks = []models.Todo{}
	taskIndex := map[int]int{}
	for rows.Next() {
		var task models.Todo
		if err := rows.Scan(&task.ID, &task.Content, &task.Completed, &task.ListID, &task.CreatedAt); err != nil {
			logRequest(ctx, "error", "Failed to scan task", zap.Error(err))
			continue
		}
		taskIndex[task.ID] = len(detail.Tasks)
		detail.Tasks = append(detail.Tasks, task)
	}

	if len(detail.Tasks) > 0 {
		ids := make([]int, 0, len(detail.Tasks))
		for taskID := range taskIndex {
			ids = append(ids, taskID)
		}
		query, args, err := sqlx.In(
			"SELECT tt.task_id, t.id, t.name FROM task_tags tt JOIN tags t ON t.id = tt.tag_id WHERE tt.task_id IN (?) ORDER BY t.name", ids)
		if err != nil {
			logRequest(ctx, "error", "Failed to build tag query", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
			return
		}
		tagRows, err := h.db.Query(query, args...)
		if err != nil {
			logRequest(ctx, "error", "Failed to query tags", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
			return
		}
		defer tagRows.Close()

		for tagRows.Next() {
			var taskID int
			var tag models.Tag
			if err := tagRows.Scan(&taskID, &tag.ID, &tag.Name); err != nil {
				logRequest(ctx, "error", "Failed to scan tag", zap.Error(err))
				continue
			}
			if i, ok := taskIndex[taskID]; ok {
				detail.Tasks[i].Tags = append(detail.Tasks[i].Tags, tag)
			}
		}
	}

	logRequest(ctx, "info", "List retrieved", zap.Int("list_id", id), zap.Int("tasks", len(detail.Tasks)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

// AddList handles POST /add_list - creates a list owned by the session user
func (h *ListHandler) AddList(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}
	if !checkCSRF(ctx, w, r, user) {
		return
	}

	name := strings.TrimSpace(r.PostFormValue("list_name"))
	if name == "" {
		logRequest(ctx, "error", "Empty list name", zap.Int("user_id", user.ID))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("List name is required"))
		return
	}

	_, err := h.db.Exec("INSERT INTO todo_lists (name, user_id, created_at) VALUES (?, ?, ?)",
		name, user.ID, time.Now())
	if err != nil {
		logRequest(ctx, "error", "Failed to create list", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create list"))
		return
	}

	logRequest(ctx, "info", "List created", zap.String("name", name), zap.Int("user_id", user.ID))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// DeleteList handles POST /delete_list/{list_id} - deletes an owned list,
// cascading to its todos and their tag links.
func (h *ListHandler) DeleteList(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := requireSession(ctx, w, r, h.cache)
	if user == nil {
		return
	}
	if !checkCSRF(ctx, w, r, user) {
		return
	}

	vars := mux.Vars(r)
	idStr := vars["list_id"]
	id, err := strconv.Atoi(idStr)
	if err != nil {
		logRequest(ctx, "error", "Invalid list ID", zap.String("id", idStr))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid list ID"))
		return
	}

	var ownerID int
	err = h.db.QueryRow("SELECT user_id FROM todo_lists WHERE id = ?", id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		logRequest(ctx, "info", "List not found", zap.Int("list_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("List not found"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to query list", zap.Error(err), zap.Int("list_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}

	if ownerID != user.ID {
		logRequest(ctx, "info", "List owned by another user", zap.Int("list_id", id), zap.Int("user_id", user.ID))
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	if _, err := h.db.Exec("DELETE FROM todo_lists WHERE id = ?", id); err != nil {
		logRequest(ctx, "error", "Failed to delete list", zap.Error(err), zap.Int("list_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete list"))
		return
	}

	logRequest(ctx, "info", "List deleted", zap.Int("list_id", id))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
