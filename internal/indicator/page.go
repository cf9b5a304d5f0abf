package indicator

import (
	"bytes"
	"io"
	"sync"

	"golang.org/x/net/html"

	"github.com/loykin/krishid/internal/status"
)

// Page is a parsed HTML document shared between the monitor and HTTP
// handlers. All access goes through its methods.
type Page struct {
	mu  sync.Mutex
	doc *html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Page{doc: doc}, nil
}

// NewPage wraps an already parsed document.
func NewPage(doc *html.Node) *Page { return &Page{doc: doc} }

func (p *Page) Render(st status.EndpointStatus) {
	p.mu.Lock()
	Render(p.doc, st)
	p.mu.Unlock()
}

func (p *Page) ShowStartup() {
	p.mu.Lock()
	ShowStartup(p.doc)
	p.mu.Unlock()
}

func (p *Page) HideStartup() {
	p.mu.Lock()
	HideStartup(p.doc)
	p.mu.Unlock()
}

func (p *Page) Cleanup() {
	p.mu.Lock()
	Cleanup(p.doc)
	p.mu.Unlock()
}

// Do runs fn with exclusive access to the document.
func (p *Page) Do(fn func(doc *html.Node)) {
	p.mu.Lock()
	fn(p.doc)
	p.mu.Unlock()
}

// HTML serializes the document.
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, p.doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
