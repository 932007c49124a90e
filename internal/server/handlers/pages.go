// Page creation and editing forms.

package handlers

import (
	"net/http"

	"github.com/maruel/mdwiki/internal/server/reqctx"
	"github.com/maruel/mdwiki/internal/server/webui"
	"github.com/maruel/mdwiki/internal/storage/git"
	"github.com/maruel/mdwiki/internal/wiki"
)

// NewForm renders the empty page creation form.
func (h *Handlers) NewForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, "new.html", http.StatusOK, webui.PageFormData{})
}

// CreatePage handles the new-page form submission. On failure the form is
// re-rendered with the submitted input preserved.
func (h *Handlers) CreatePage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, "new.html", http.StatusBadRequest, webui.PageFormData{Warning: "Invalid form submission"})
		return
	}
	file := r.PostFormValue("file")
	content := r.PostFormValue("content")

	p, err := h.Wiki.CreatePage(r.Context(), file, []byte(content), h.author(r))
	if err != nil {
		status, msg := errStatus(err)
		h.renderForm(w, "new.html", status, webui.PageFormData{File: file, Content: content, Warning: msg})
		return
	}
	http.Redirect(w, r, p.RenderedURL(), http.StatusSeeOther)
}

// EditForm renders the edit form preloaded with the page content and its
// recent history. A rev query parameter loads the content at that commit.
func (h *Handlers) EditForm(w http.ResponseWriter, r *http.Request) {
	requested := r.PathValue("path")
	p, content, err := h.Wiki.GetPage(requested)
	if err != nil {
		status, msg := errStatus(err)
		http.Error(w, msg, status)
		return
	}

	rev := r.FormValue("rev")
	if rev != "" {
		content, err = h.Wiki.PageAt(r.Context(), rev, p)
		if err != nil {
			status, msg := errStatus(err)
			http.Error(w, msg, status)
			return
		}
	}

	h.renderForm(w, "edit.html", http.StatusOK, webui.PageFormData{
		File:    p.String(),
		Content: string(content),
		Rev:     rev,
		History: h.history(r, p),
	})
}

// EditPage handles the edit form submission.
func (h *Handlers) EditPage(w http.ResponseWriter, r *http.Request) {
	requested := r.PathValue("path")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	content := r.PostFormValue("content")

	p, err := h.Wiki.EditPage(r.Context(), requested, []byte(content), h.author(r))
	if err != nil {
		status, msg := errStatus(err)
		h.renderForm(w, "edit.html", status, webui.PageFormData{
			File:    requested,
			Content: content,
			Warning: msg,
		})
		return
	}
	http.Redirect(w, r, p.RenderedURL(), http.StatusSeeOther)
}

// author builds the commit author from the authenticated user. The committer
// identity stays with the service; only the author line names the editor.
func (h *Handlers) author(r *http.Request) git.Author {
	user := reqctx.User(r.Context())
	if user == nil {
		return git.Author{}
	}
	return git.Author{Name: user.Username, Email: user.Username + "@mdwiki.local"}
}

func (h *Handlers) history(r *http.Request, p wiki.WikiPath) []webui.HistoryEntry {
	commits, err := h.Wiki.PageHistory(r.Context(), p)
	if err != nil {
		h.Log.Warn("failed to load page history", "path", p.String(), "err", err)
		return nil
	}
	entries := make([]webui.HistoryEntry, 0, len(commits))
	for _, c := range commits {
		short := c.Hash
		if len(short) > 8 {
			short = short[:8]
		}
		entries = append(entries, webui.HistoryEntry{
			Hash:    c.Hash,
			Short:   short,
			Message: c.Message,
			Author:  c.Author,
			Date:    c.AuthorDate.Format("2006-01-02 15:04"),
		})
	}
	return entries
}

func (h *Handlers) renderForm(w http.ResponseWriter, name string, status int, data webui.PageFormData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := webui.Templates.ExecuteTemplate(w, name, data); err != nil {
		h.Log.Error("failed to render page form", "template", name, "err", err)
	}
}
