package guidance

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"sync"
)

var pageTmpl = template.Must(template.New("guidance").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<div class="krishid-guidance krishid-{{.Kind}}">
<h2>{{.Title}}</h2>
<p>{{.Body}}</p>
{{- if .Commands}}
<ol class="quick-start">
{{- range .Commands}}
<li><strong>{{.Label}}:</strong> <code>{{.Line}}</code></li>
{{- end}}
</ol>
{{- end}}
{{- if .URL}}
<p class="service-url"><a href="{{.URL}}">{{.URL}}</a></p>
{{- end}}
</div>
</body>
</html>
`))

// WriteHTML renders m as a standalone HTML page.
func WriteHTML(w io.Writer, m Message) error {
	return pageTmpl.Execute(w, m)
}

// HTMLRenderer keeps the latest rendered page per kind so the daemon can
// serve it.
type HTMLRenderer struct {
	mu    sync.RWMutex
	pages map[Kind][]byte
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{pages: make(map[Kind][]byte)}
}

func (r *HTMLRenderer) Render(_ context.Context, m Message) error {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, m); err != nil {
		return err
	}
	r.mu.Lock()
	r.pages[m.Kind] = buf.Bytes()
	r.mu.Unlock()
	return nil
}

// Latest returns the last page rendered for kind.
func (r *HTMLRenderer) Latest(kind Kind) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.pages[kind]
	return b, ok
}
