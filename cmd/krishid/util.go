package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/loykin/krishid/internal/guidance"
)

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}

// printGuidance writes a guidance message as plain text.
func printGuidance(w io.Writer, m guidance.Message) {
	_, _ = fmt.Fprintln(w, m.Title)
	if m.Body != "" {
		_, _ = fmt.Fprintln(w, m.Body)
	}
	for _, c := range m.Commands {
		_, _ = fmt.Fprintf(w, "  %-22s %s\n", c.Label+":", c.Line)
	}
	if m.URL != "" {
		_, _ = fmt.Fprintf(w, "Then open %s\n", m.URL)
	}
}

// browserCommand returns the shell command that opens url in the default browser.
func browserCommand(goos, url string) string {
	quoted := "'" + strings.ReplaceAll(url, "'", `'\''`) + "'"
	switch goos {
	case "windows":
		return "rundll32 url.dll,FileProtocolHandler " + url
	case "darwin":
		return "open " + quoted
	default:
		return "xdg-open " + quoted
	}
}

func defaultBrowserCommand(url string) string { return browserCommand(runtime.GOOS, url) }
