package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
)

// TagHandler attaches shared tags to todos. Tag names live in a single
// global namespace across users; attaching reuses an existing row by
// normalized name and never creates duplicates.
type TagHandler struct {
	db    *sqlx.DB
	cache cache.Cache
}

// NewTagHandler creates a new tag handler
func NewTagHandler(db *sqlx.DB, cache cache.Cache) *TagHandler {
	return &TagHandler{
		db:    db,
		cache: cache,
	}
}

// AddTag handles POST /add_tag/{task_id} - normalizes the tag name
// (trim + lowercase), reuses or creates the tag row and links it to the
// task. An empty normalized name is a deliberate no-op.
func (h *TagHandler) AddTag(ctx context.Context, w http.ResponseWriter, r *http.Request) {
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

	name := strings.ToLower(strings.TrimSpace(r.PostFormValue("tag_name")))
	if name == "" {
		logRequest(ctx, "debug", "Empty tag name, nothing to do", zap.Int("task_id", id))
		http.Redirect(w, r, "/list/"+strconv.Itoa(listID), http.StatusSeeOther)
		return
	}

	// Reuse-or-create without a read-then-write race: the UNIQUE
	// constraint makes the insert a no-op when the name exists.
	if _, err := h.db.Exec("INSERT OR IGNORE INTO tags (name) VALUES (?)", name); err != nil {
		logRequest(ctx, "error", "Failed to create tag", zap.Error(err), zap.String("tag", name))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to add tag"))
		return
	}

	var tagID int
	err := h.db.QueryRow("SELECT id FROM tags WHERE name = ?", name).Scan(&tagID)
	if err != nil {
		logRequest(ctx, "error", "Failed to look up tag", zap.Error(err), zap.String("tag", name))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to add tag"))
		return
	}

	// Composite primary key on (task_id, tag_id); repeated adds are no-ops
	if _, err := h.db.Exec("INSERT OR IGNORE INTO task_tags (task_id, tag_id) VALUES (?, ?)", id, tagID); err != nil {
		logRequest(ctx, "error", "Failed to link tag", zap.Error(err), zap.Int("task_id", id), zap.Int("tag_id", tagID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to add tag"))
		return
	}

	logRequest(ctx, "info", "Tag added", zap.Int("task_id", id), zap.String("tag", name))
	http.Redirect(w, r, "/list/"+strconv.Itoa(listID), http.StatusSeeOther)
}
