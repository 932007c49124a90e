// Package webui embeds the HTML templates and the theme script for the
// browser editing surface.
package webui

import (
	"embed"
	"html/template"
	texttemplate "text/template"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed templates/mdwiki.js.tmpl
var scriptSrc string

// Templates holds the parsed page templates: login.html, new.html, edit.html.
var Templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Script is the theme script template, rendered per request with the
// logged-in flag. Parsed as text; its output is JavaScript, not HTML.
var Script = texttemplate.Must(texttemplate.New("mdwiki.js").Parse(scriptSrc))

// LoginData feeds login.html.
type LoginData struct {
	// Warning is shown above the form, e.g. after a failed attempt.
	Warning string
	// Username is set when a user is already logged in.
	Username string
}

// PageFormData feeds new.html and edit.html.
type PageFormData struct {
	// File is the page path. Editable on the new form, fixed on edit.
	File string
	// Content is the Markdown source, preserved on errors.
	Content string
	// Warning is shown above the form.
	Warning string
	// Rev is the commit hash being viewed, empty for the working copy.
	Rev string
	// History lists recent commits touching the page (edit form only).
	History []HistoryEntry
}

// HistoryEntry is one commit in the edit form's history list.
type HistoryEntry struct {
	Hash    string
	Short   string
	Message string
	Author  string
	Date    string
}

// ScriptData feeds mdwiki.js.tmpl.
type ScriptData struct {
	LoggedIn bool
}
