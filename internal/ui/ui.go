// Package ui renders the HTML bridge pages returned by the OAuth
// callback. Both the popup and the redirect flow share the same pages:
// the embedded script posts the result to window.opener when there is
// one, and falls back to navigating the window itself otherwise.
package ui

import (
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

// SuccessData is the data for the auth success page. The session token
// is deliberately never part of it; clients retrieve the token via the
// token endpoint.
type SuccessData struct {
	UserID      string
	DisplayName string
	AppRoot     string
}

// FailureData is the data for the auth failure page.
type FailureData struct {
	Message string
}

// Renderer renders the embedded bridge pages.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Success writes the auth success page with a 200 status.
func (r *Renderer) Success(w http.ResponseWriter, data SuccessData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = r.templates.ExecuteTemplate(w, "auth_success.html", data)
}

// Failure writes the auth failure page with the given status.
func (r *Renderer) Failure(w http.ResponseWriter, status int, data FailureData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = r.templates.ExecuteTemplate(w, "auth_failure.html", data)
}
