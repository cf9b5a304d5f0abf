// Package guidance tells the user what happened when the backend could not be
// started automatically, or that it just came up.
package guidance

import (
	"context"
	"errors"
	"log/slog"
)

// Kind classifies a message.
type Kind string

const (
	KindGuidance Kind = "guidance" // manual start required
	KindSuccess  Kind = "success"  // service came up after an attempt
	KindNotice   Kind = "notice"   // once-per-session "not running" notice
	KindStartup  Kind = "startup"  // start sequence in progress
)

// Command is one manual way of starting the service.
type Command struct {
	Label string `json:"label"`
	Line  string `json:"line"`
}

// ManualCommands are the documented ways to start the backend by hand.
var ManualCommands = []Command{
	{Label: "One click (Windows)", Line: "start_krishivaani.bat"},
	{Label: "Command line", Line: "python krishivaani_manager.py"},
	{Label: "Direct Flask", Line: "python crop-disease/flask_auto_starter.py start"},
}

// Message is what a Renderer shows.
type Message struct {
	Kind     Kind      `json:"kind"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	URL      string    `json:"url,omitempty"`
	Commands []Command `json:"commands,omitempty"`
}

// Manual is the fallback shown when every start strategy failed.
func Manual(url string) Message {
	return Message{
		Kind:     KindGuidance,
		Title:    "Manual Service Start Required",
		Body:     "The AI Disease Prediction service needs to be started manually. After starting, it will be available at " + url + ".",
		URL:      url,
		Commands: ManualCommands,
	}
}

// Ready announces a successful start.
func Ready(url string) Message {
	return Message{
		Kind:  KindSuccess,
		Title: "AI Service Ready!",
		Body:  "Advanced Plant Disease Prediction is now online and ready to use.",
		URL:   url,
	}
}

// Notice is the session notice shown when the service was found down.
func Notice(url string) Message {
	return Message{
		Kind:  KindNotice,
		Title: "AI Service Offline",
		Body:  "The disease prediction service is not running. krishid will try to start it.",
		URL:   url,
	}
}

// Starting is shown while a start sequence runs.
func Starting() Message {
	return Message{Kind: KindStartup, Title: "Starting AI Disease Prediction Service..."}
}

// Renderer displays a message somewhere.
type Renderer interface {
	Render(ctx context.Context, m Message) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, m Message) error

func (f RendererFunc) Render(ctx context.Context, m Message) error { return f(ctx, m) }

// LogRenderer writes messages to a structured logger. It is the fallback
// when nothing richer is configured.
type LogRenderer struct {
	Logger *slog.Logger
}

func (r LogRenderer) Render(ctx context.Context, m Message) error {
	l := r.Logger
	if l == nil {
		l = slog.Default()
	}
	attrs := []any{"kind", string(m.Kind), "title", m.Title}
	if m.URL != "" {
		attrs = append(attrs, "url", m.URL)
	}
	for _, c := range m.Commands {
		attrs = append(attrs, slog.String(c.Label, c.Line))
	}
	level := slog.LevelInfo
	if m.Kind == KindGuidance {
		level = slog.LevelWarn
	}
	l.Log(ctx, level, m.Body, attrs...)
	return nil
}

// Multi renders to every renderer and joins the errors.
type Multi []Renderer

func (m Multi) Render(ctx context.Context, msg Message) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Render(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
