// Image upload endpoint.

package handlers

import (
	"net/http"

	"github.com/maruel/mdwiki/internal/server/reqctx"
)

// UploadImage accepts a raw image body and responds with the site-relative
// asset reference to embed in Markdown.
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Uploader.MaxBytes()+1)
	ref, err := h.Uploader.Save(r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		status, msg := errStatus(err)
		http.Error(w, msg, status)
		return
	}
	user := reqctx.User(r.Context())
	h.Log.Info("upload", "ref", ref, "user", user.Username)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(ref))
}
