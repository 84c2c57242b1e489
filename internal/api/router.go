package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/SilverRainZ/loveletter/internal/archive"
	"github.com/SilverRainZ/loveletter/internal/index"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(arch *archive.Archive, db *index.DB, authEnabled bool, token string) chi.Router {
	h := NewHandler(arch, db)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/letters", h.ListLetters)
	r.Get("/letters/{name}", h.GetLetter)
	r.Get("/search", h.Search)
	r.Post("/generate", h.Generate)

	return r
}
