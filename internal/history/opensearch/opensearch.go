// Package opensearch indexes monitor events through the OpenSearch document API.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/krishid/internal/history"
)

// Sink POSTs one document per event to {base}/{index}/_doc. With Daily the
// index gets a UTC date suffix, e.g. krishid-history-2024.03.01.
type Sink struct {
	client *http.Client
	base   string
	index  string
	daily  bool
}

type Option func(*Sink)

func Daily() Option                        { return func(s *Sink) { s.daily = true } }
func WithHTTPClient(c *http.Client) Option { return func(s *Sink) { s.client = c } }

func New(baseURL, index string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 5 * time.Second},
		base:   strings.TrimRight(baseURL, "/"),
		index:  index,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// IndexFor returns the index an event occurring at t is written to.
func (s *Sink) IndexFor(t time.Time) string {
	if !s.daily {
		return s.index
	}
	return s.index + "-" + t.UTC().Format("2006.01.02")
}

// document adds the @timestamp field dashboards sort on.
type document struct {
	history.Event
	Timestamp time.Time `json:"@timestamp"`
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(document{Event: e, Timestamp: e.OccurredAt})
	if err != nil {
		return err
	}
	idx := s.IndexFor(e.OccurredAt)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/"+idx+"/_doc", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("opensearch index %s: status %d: %s", idx, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
