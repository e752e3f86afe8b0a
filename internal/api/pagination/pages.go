package pagination

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// PageParam is the query parameter carrying the 1-based page number.
const PageParam = "page"

// ParsePage reads the page number from r. Missing, malformed and
// non-positive values all mean the first page.
func ParsePage(r *http.Request) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(PageParam)))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Page describes one page of a list for rendering.
type Page struct {
	Number     int
	Size       int
	Total      int
	TotalPages int

	query url.Values
	path  string
}

// New builds a Page for a list of total rows shown size at a time. The
// filters in r's query string are kept on the links it produces.
func New(r *http.Request, number, size, total int) Page {
	if size < 1 {
		size = 1
	}
	if number < 1 {
		number = 1
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	query := url.Values{}
	for key, values := range r.URL.Query() {
		if key == PageParam {
			continue
		}
		query[key] = values
	}
	return Page{
		Number:     number,
		Size:       size,
		Total:      total,
		TotalPages: pages,
		query:      query,
		path:       r.URL.Path,
	}
}

// Offset is the number of rows before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

func (p Page) HasPrev() bool { return p.Number > 1 }

func (p Page) HasNext() bool { return p.Number < p.TotalPages }

func (p Page) PrevURL() string { return p.URL(p.Number - 1) }

func (p Page) NextURL() string { return p.URL(p.Number + 1) }

// URL links to page n with the current filters.
func (p Page) URL(n int) string {
	q := url.Values{}
	for key, values := range p.query {
		q[key] = values
	}
	if n > 1 {
		q.Set(PageParam, strconv.Itoa(n))
	}
	if len(q) == 0 {
		return p.path
	}
	return p.path + "?" + q.Encode()
}
