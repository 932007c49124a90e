// Package server assembles the HTTP surface: routing, authentication and
// login throttling around the endpoint handlers.
package server

import (
	"net/http"
	"time"

	"github.com/maruel/mdwiki/internal/server/handlers"
	"github.com/maruel/mdwiki/internal/server/ratelimit"
)

type router struct {
	h     *handlers.Handlers
	login *ratelimit.Limiter
}

// New builds the wiki's HTTP handler.
func New(h *handlers.Handlers) http.Handler {
	rt := &router{
		h:     h,
		login: ratelimit.NewLimiter(h.Config.LoginRatePerMin, time.Minute),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.Handle("POST /login", rt.limitLogin(h.Login))
	mux.HandleFunc("GET /logout", h.Logout)
	mux.Handle("GET /new", rt.requireUser(h.NewForm))
	mux.Handle("POST /new", rt.requireUser(h.CreatePage))
	mux.Handle("GET /edit/{path...}", rt.requireUser(h.EditForm))
	mux.Handle("POST /edit/{path...}", rt.requireUser(h.EditPage))
	mux.Handle("POST /upload/image", rt.requireAPIUser(h.UploadImage))
	mux.HandleFunc("GET /mdwiki.js", h.Script)
	mux.HandleFunc("GET /{path...}", h.Site)

	return rt.meta(rt.auth(mux))
}
