// Package render turns handler data into HTML pages. Every page is parsed
// together with the shared layout from templates embedded in the binary.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/outreach-portal/server/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Page is the data every template receives. Data holds the page specific
// values.
type Page struct {
	Title     string
	Active    string
	Identity  auth.Identity
	LoggedIn  bool
	CSRFField template.HTML
	Flash     string
	Errors    map[string]string
	Form      url.Values
	Data      map[string]any
}

// Value returns the submitted value of a form field, for re-rendering.
func (p Page) Value(field string) string {
	if p.Form == nil {
		return ""
	}
	return p.Form.Get(field)
}

// Error returns the validation message for field.
func (p Page) Error(field string) string {
	return p.Errors[field]
}

// Renderer holds the parsed pages.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	layout, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		tmpl, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := tmpl.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[path.Base(file)] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Has reports whether a page called name exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// HTML renders page name with status. Nothing is written when rendering
// fails.
func (r *Renderer) HTML(w http.ResponseWriter, status int, name string, page Page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	if page.Data == nil {
		page.Data = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", page); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

var funcs = template.FuncMap{
	"date":     formatDate,
	"datetime": formatDateTime,
	"isodate":  isoDate,
	"money":    formatMoney,
	"rating":   formatRating,
	"intval":   intValue,
	"title":    titleCase,
}

func deref(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	}
	return time.Time{}, false
}

func formatDate(v any) string {
	t, ok := deref(v)
	if !ok {
		return ""
	}
	return t.Format("01/02/2006")
}

func formatDateTime(v any) string {
	t, ok := deref(v)
	if !ok {
		return ""
	}
	return t.Format("01/02/2006 3:04 PM")
}

// isoDate is the value format of date and datetime-local inputs.
func isoDate(layout string, v any) string {
	t, ok := deref(v)
	if !ok {
		return ""
	}
	if layout == "datetime" {
		return t.Format("2006-01-02T15:04")
	}
	return t.Format("2006-01-02")
}

func formatMoney(amount float64) string {
	whole := strconv.FormatFloat(amount, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(whole, "-") {
		sign, whole = "-", whole[1:]
	}
	intPart, frac, _ := strings.Cut(whole, ".")
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String() + "." + frac
}

func formatRating(v *int) string {
	if v == nil {
		return "N/A"
	}
	return strconv.Itoa(*v)
}

func intValue(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
