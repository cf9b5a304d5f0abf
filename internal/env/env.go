// Package env composes the environment handed to the launched backend.
package env

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Env is a layered KEY=VALUE set; later layers override earlier ones.
type Env struct {
	vars map[string]string
}

func New() *Env {
	return &Env{vars: make(map[string]string)}
}

// FromOS layers the current process environment.
func (e *Env) FromOS() *Env {
	return e.Apply(os.Environ())
}

// Set sets a single variable; empty keys are ignored.
func (e *Env) Set(k, v string) *Env {
	if k != "" {
		e.vars[k] = v
	}
	return e
}

// Apply layers "K=V" pairs. Entries without '=' or with an empty key are skipped.
func (e *Env) Apply(pairs []string) *Env {
	for _, kv := range pairs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.vars[kv[:i]] = kv[i+1:]
		}
	}
	return e
}

// LoadFile layers a dotenv-style file: KEY=VALUE per line, blank lines and
// # comments skipped, optional "export " prefix and surrounding quotes removed.
func (e *Env) LoadFile(path string) error {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	for n, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		i := strings.IndexByte(line, '=')
		if i <= 0 {
			return fmt.Errorf("%s:%d: expected KEY=VALUE", path, n+1)
		}
		e.Set(strings.TrimSpace(line[:i]), unquote(strings.TrimSpace(line[i+1:])))
	}
	return nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// Get returns the raw (unexpanded) value.
func (e *Env) Get(k string) (string, bool) {
	v, ok := e.vars[k]
	return v, ok
}

// List returns the composed environment sorted by key, with ${VAR}
// references expanded once against the composed set. Unknown references
// are left as written.
func (e *Env) List() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+Expand(e.vars[k], e.vars))
	}
	return out
}

// Expand replaces ${NAME} in s with m[NAME]. Expansion is not recursive.
func Expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			break
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := m[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
	return b.String()
}
