// Package indicator decorates an HTML page with the backend's availability:
// a dot on every link that leads to the disease-prediction service, the
// text of status badges, and a banner while a start is in progress.
package indicator

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/loykin/krishid/internal/status"
)

// Element names the renderer creates or looks for.
const (
	IndicatorClass = "service-indicator"
	StatusClass    = "flask-service-status"
	StartupID      = "flask-startup-indicator"
	ServiceAttr    = "data-service"
	ServiceName    = "disease-prediction"
)

var hrefMarkers = []string{"crop-disease", "disease", "127.0.0.1:5000"}

// IsTarget reports whether n should carry an availability indicator.
func IsTarget(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if attr(n, ServiceAttr) == ServiceName {
		return true
	}
	if n.DataAtom != atom.A {
		return false
	}
	href := attr(n, "href")
	for _, m := range hrefMarkers {
		if strings.Contains(href, m) {
			return true
		}
	}
	return false
}

// Targets returns the decorated elements in document order.
func Targets(doc *html.Node) []*html.Node {
	var out []*html.Node
	walk(doc, func(n *html.Node) {
		if IsTarget(n) {
			out = append(out, n)
		}
	})
	return out
}

// Render replaces every indicator with one reflecting st and updates the
// status badges. Calling it repeatedly never duplicates indicators.
func Render(doc *html.Node, st status.EndpointStatus) {
	removeAll(doc, func(n *html.Node) bool { return hasClass(n, IndicatorClass) })

	running := st.Running()
	for _, t := range Targets(doc) {
		t.AppendChild(dot(running))
	}

	text, state := "AI Service: Offline", "offline"
	if running {
		text, state = "AI Service: Online", "online"
	}
	walk(doc, func(n *html.Node) {
		if !hasClass(n, StatusClass) {
			return
		}
		setText(n, text)
		setAttr(n, "class", StatusClass+" "+state)
	})
}

func dot(running bool) *html.Node {
	title, state := "AI Service Stopped - Click to start", "stopped"
	if running {
		title, state = "AI Service Running", "running"
	}
	n := element(atom.Span,
		html.Attribute{Key: "class", Val: IndicatorClass + " " + state},
		html.Attribute{Key: "title", Val: title},
	)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: "●"})
	return n
}

// ShowStartup inserts the startup banner at the top of body, replacing any
// existing one.
func ShowStartup(doc *html.Node) {
	HideStartup(doc)
	banner := element(atom.Div, html.Attribute{Key: "id", Val: StartupID})
	banner.AppendChild(&html.Node{Type: html.TextNode, Data: "Starting AI Disease Prediction Service..."})
	parent := body(doc)
	parent.InsertBefore(banner, parent.FirstChild)
}

// HideStartup removes the startup banner.
func HideStartup(doc *html.Node) {
	removeAll(doc, func(n *html.Node) bool { return attr(n, "id") == StartupID })
}

// HasStartup reports whether the banner is present.
func HasStartup(doc *html.Node) bool {
	return find(doc, func(n *html.Node) bool { return attr(n, "id") == StartupID }) != nil
}

// Cleanup removes everything Render and ShowStartup inserted.
func Cleanup(doc *html.Node) {
	removeAll(doc, func(n *html.Node) bool {
		return hasClass(n, IndicatorClass) || attr(n, "id") == StartupID
	})
}
