// Package store persists the few user preferences krishid needs across
// restarts: the chosen UI language and the "already notified" flag.
package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// Preference keys.
const (
	KeyLanguage        = "agritech_language"
	KeyServiceNotified = "flaskServiceNotified"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("preference not found")

// Prefs is a string key/value store.
type Prefs interface {
	EnsureSchema(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetBool reads a boolean preference; missing or malformed reads as false.
func GetBool(ctx context.Context, p Prefs, key string) bool {
	v, err := p.Get(ctx, key)
	if err != nil {
		return false
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// SetBool stores a boolean preference.
func SetBool(ctx context.Context, p Prefs, key string, v bool) error {
	return p.Set(ctx, key, strconv.FormatBool(v))
}

// Memory is an in-process Prefs. It doubles as the per-session store, since
// its contents vanish with the daemon.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemory() *Memory { return &Memory{m: make(map[string]string)} }

func (s *Memory) EnsureSchema(context.Context) error { return nil }

func (s *Memory) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *Memory) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *Memory) Close() error { return nil }
