package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/SilverRainZ/loveletter/internal/apperr"
	"github.com/SilverRainZ/loveletter/internal/archive"
	"github.com/SilverRainZ/loveletter/internal/index"
)

// LetterDetail is the full representation of one letter.
type LetterDetail struct {
	Filename   string     `json:"filename"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	SenderRole string     `json:"sender_role"`
	Date       string     `json:"date"`
	Title      string     `json:"title,omitempty"`
	Content    string     `json:"content"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Handler holds API route handlers.
type Handler struct {
	arch *archive.Archive
	db   *index.DB
}

// NewHandler creates a new Handler.
func NewHandler(arch *archive.Archive, db *index.DB) *Handler {
	return &Handler{arch: arch, db: db}
}

// ListLetters handles GET /api/letters with optional year/limit/offset.
func (h *Handler) ListLetters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, _ := strconv.Atoi(q.Get("year"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	letters, total, err := h.db.ListLetters(year, limit, offset)
	if err != nil {
		slog.Error("list letters failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if letters == nil {
		letters = []index.LetterRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"letters": letters,
		"total":   total,
	})
}

// GetLetter handles GET /api/letters/{name}.
func (h *Handler) GetLetter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	letter, err := h.arch.GetLetter(name)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrCorrupt):
			slog.Error("letter is corrupt", slog.String("file", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("corrupt letter"))
		default:
			slog.Error("get letter failed", slog.String("file", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, LetterDetail{
		Filename:   name,
		From:       letter.From,
		To:         letter.To,
		SenderRole: letter.SenderRole.String(),
		Date:       letter.Date.String(),
		Title:      letter.Title,
		Content:    letter.Content,
		CreatedAt:  letter.CreatedAt,
		UpdatedAt:  letter.UpdatedAt,
	})
}

// Search handles GET /api/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.db.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if hits == nil {
		hits = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

// Generate handles POST /api/generate, triggering a full document rebuild.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if err := h.arch.GenerateDocs(); err != nil {
		slog.Error("generate docs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
