package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/html"

	"github.com/loykin/krishid/internal/guidance"
	"github.com/loykin/krishid/internal/i18n"
	"github.com/loykin/krishid/internal/indicator"
	"github.com/loykin/krishid/internal/monitor"
	"github.com/loykin/krishid/pkg/client"
)

const maxPageBytes = 4 << 20

func unavailable(c *gin.Context, what string) {
	writeJSON(c, http.StatusServiceUnavailable, client.ErrorResponse{Error: what + " not configured"})
}

// handleOpen is the link-interception flow: redirect when the service is up
// (starting it first if needed), otherwise serve a guidance page.
func (r *Router) handleOpen(c *gin.Context) {
	m := r.opts.Monitor
	if m == nil {
		unavailable(c, "monitor")
		return
	}
	d := m.Open(c.Request.Context())
	if c.Query("format") == "json" {
		writeJSON(c, http.StatusOK, d)
		return
	}
	switch d.Action {
	case monitor.ActionOpen:
		c.Redirect(http.StatusFound, d.URL)
	case monitor.ActionBusy:
		c.Header("Retry-After", "2")
		r.writeGuidance(c, http.StatusAccepted, guidance.Starting())
	default:
		r.writeGuidance(c, http.StatusOK, guidance.Manual(d.URL))
	}
}

func (r *Router) writeGuidance(c *gin.Context, code int, msg guidance.Message) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(code)
	if err := guidance.WriteHTML(c.Writer, msg); err != nil {
		r.logger.Debug("guidance page write failed", "error", err)
	}
}

type languageResponse struct {
	Language  string          `json:"language"`
	Label     string          `json:"label"`
	Voice     string          `json:"voice"`
	Languages []i18n.Language `json:"languages"`
	Catalog   i18n.Catalog    `json:"catalog,omitempty"`
}

func (r *Router) describeLanguage(lang string, withCatalog bool) languageResponse {
	resp := languageResponse{
		Language:  lang,
		Label:     i18n.Label(lang),
		Voice:     i18n.Voice(lang),
		Languages: i18n.Languages(),
	}
	if withCatalog {
		resp.Catalog, _ = r.opts.Translator.Catalog(lang)
	}
	return resp
}

func (r *Router) handleI18n(c *gin.Context) {
	if r.opts.Translator == nil {
		unavailable(c, "translator")
		return
	}
	lang := c.DefaultQuery("lang", r.opts.Translator.Current())
	if _, ok := r.opts.Translator.Catalog(lang); !ok {
		writeJSON(c, http.StatusNotFound, client.ErrorResponse{Error: "unknown language " + lang})
		return
	}
	writeJSON(c, http.StatusOK, r.describeLanguage(lang, c.Query("catalog") != "false"))
}

func (r *Router) handleSwitchLanguage(c *gin.Context) {
	if r.opts.Translator == nil {
		unavailable(c, "translator")
		return
	}
	lang := c.Param("lang")
	if err := r.opts.Translator.Switch(c.Request.Context(), lang); err != nil {
		writeJSON(c, http.StatusBadRequest, client.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, r.describeLanguage(lang, false))
}

// handleRenderPage applies the current translations and the availability
// indicators to an uploaded HTML page. ?check=true probes the endpoint first.
func (r *Router) handleRenderPage(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxPageBytes)
	page, err := indicator.Parse(body)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, client.ErrorResponse{Error: "invalid HTML: " + err.Error()})
		return
	}
	// translation replaces element text, so it runs before indicators are added
	translated := 0
	if tr := r.opts.Translator; tr != nil {
		page.Do(func(doc *html.Node) { translated = tr.TranslateDocument(doc) })
	}
	if m := r.opts.Monitor; m != nil {
		if c.Query("check") == "true" {
			m.CheckAvailability(c.Request.Context())
		}
		page.Render(m.Status())
		if m.Attempts().InProgress {
			page.ShowStartup()
		} else {
			page.HideStartup()
		}
	}
	out, err := page.HTML()
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, client.ErrorResponse{Error: err.Error()})
		return
	}
	c.Header("X-Translated-Elements", strconv.Itoa(translated))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
}
