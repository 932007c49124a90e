// Serves the rendered site and the theme script.

package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	gopath "path"
	"path/filepath"
	"strings"

	"github.com/maruel/mdwiki/internal/server/reqctx"
	"github.com/maruel/mdwiki/internal/server/webui"
)

// safePrefixes are served without a session even when anonymous reading is
// disabled, so the login page itself renders with the theme's assets.
var safePrefixes = []string{"css", "FontAwesome", "favicon.svg", "fonts"}

// Script serves the theme script with the logged-in flag baked in, so the
// rendered pages can show edit controls.
func (h *Handlers) Script(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	data := webui.ScriptData{LoggedIn: reqctx.User(r.Context()) != nil}
	if err := webui.Script.Execute(w, data); err != nil {
		h.Log.Error("failed to render script", "err", err)
	}
}

// Site serves files from the rendered output directory. Directories redirect
// to their index.html. When anonymous reading is disabled, requests without a
// session redirect to the login page, except for the theme's own assets.
func (h *Handlers) Site(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(gopath.Clean("/"+r.PathValue("path")), "/")

	if !h.Config.AllowAnonymous && reqctx.User(r.Context()) == nil && !isSafePath(rel) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if rel == "" {
		http.Redirect(w, r, "/index.html", http.StatusMovedPermanently)
		return
	}

	full := filepath.Join(h.BookDir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		http.Redirect(w, r, "/"+rel+"/index.html", http.StatusMovedPermanently)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}
	defer func() { _ = f.Close() }()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func isSafePath(rel string) bool {
	for _, prefix := range safePrefixes {
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
	}
	return false
}
