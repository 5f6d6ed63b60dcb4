package handler

import (
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/species-catalog/internal/catalog"
	"github.com/sakif/species-catalog/internal/model"
)

// Views holds the parsed page templates and fragments.
//
// TEMPLATE PARSING:
// All templates are parsed once at startup into a single set, so a page
// can {{template "dialog" .}} a fragment and an SSE handler can render the
// same fragment on its own. Parsing is expensive; executing is cheap.
type Views struct {
	tmpl *template.Template
}

// NewViews parses templates/*.html from assets.
func NewViews(assets fs.FS) (*Views, error) {
	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"deref":      deref,
		"population": population,
		"authoredBy": func(s model.Species, viewer string) bool { return s.IsAuthor(viewer) },
	}).ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Views{tmpl: tmpl}, nil
}

// render executes a named template into a string. SSE patches need the
// whole fragment before the event is written.
func (v *Views) render(name string, data any) (string, error) {
	var b strings.Builder
	if err := v.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

// writeHTML renders a full page. Rendering happens before any byte is
// written, so a template error can still become a 500.
func (v *Views) writeHTML(w http.ResponseWriter, status int, name string, data any) {
	html, err := v.render(name, data)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, html)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func population(n *int64) string {
	if n == nil {
		return "Unknown"
	}
	// Group digits: 1234567 -> 1,234,567.
	raw := strconv.FormatInt(*n, 10)
	var b strings.Builder
	for i, r := range raw {
		if i > 0 && (len(raw)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// View models. Field names are what the templates reference.

type fieldsView struct {
	Prefix   string // signal namespace: "create" or "draft"
	Errors   map[string]string
	Kingdoms []model.Kingdom
}

type listView struct {
	Items        []model.Species
	Alphabetical bool
	Loaded       bool
	Viewer       string
}

type dialogView struct {
	Open       bool
	Editing    bool
	Confirming bool
	Snap       catalog.Snapshot
	Fields     fieldsView
}

type catalogPage struct {
	Title     string
	SessionID string
	User      *model.User
	Create    fieldsView
	List      listView
	Dialog    dialogView
	Toasts    []catalog.Toast
}

type loginPage struct {
	Title         string
	Error         string
	Email         string
	GitHubEnabled bool
	MinPassword   int
}

func newFieldsView(prefix string, errs map[string]string) fieldsView {
	return fieldsView{Prefix: prefix, Errors: errs, Kingdoms: model.Kingdoms()}
}

func newListView(s *catalog.Session) listView {
	return listView{
		Items:        s.List.Visible(),
		Alphabetical: s.List.Alphabetical(),
		Loaded:       s.List.Loaded(),
		Viewer:       s.Viewer,
	}
}

func newDialogView(d *catalog.Dialog) dialogView {
	if d == nil {
		return dialogView{}
	}
	snap := d.Snapshot()
	if snap.Closed {
		return dialogView{}
	}
	return dialogView{
		Open:       true,
		Editing:    snap.State == catalog.StateEditing,
		Confirming: snap.State == catalog.StateConfirmingDelete,
		Snap:       snap,
		Fields:     newFieldsView("draft", snap.Errors),
	}
}
