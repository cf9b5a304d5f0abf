package i18n

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	attrTranslate            = "data-translate"
	attrTranslatePlaceholder = "data-translate-placeholder"
)

// TranslateDocument applies the current language to doc and returns the
// number of elements changed. Only the current catalog is consulted; an
// element whose key is missing keeps its text.
func (t *Translator) TranslateDocument(doc *html.Node) int {
	t.mu.RLock()
	lang := t.current
	cat := t.catalogs[lang]
	t.mu.RUnlock()

	changed := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if key, ok := getAttr(n, attrTranslate); ok {
				if v := cat[key]; v != "" {
					if n.DataAtom == atom.Input || n.DataAtom == atom.Textarea {
						setAttr(n, "placeholder", v)
					} else {
						setText(n, v)
					}
					changed++
				}
			}
			if key, ok := getAttr(n, attrTranslatePlaceholder); ok {
				if v := cat[key]; v != "" {
					setAttr(n, "placeholder", v)
					changed++
				}
			}
			updateSelector(n, lang)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return changed
}

// updateSelector refreshes the language selector label and active option.
func updateSelector(n *html.Node, lang string) {
	if id, _ := getAttr(n, "id"); id == "currentLanguage" {
		setText(n, Label(lang))
		return
	}
	code, ok := getAttr(n, "data-lang")
	if !ok {
		return
	}
	class, _ := getAttr(n, "class")
	classes := []string{}
	for _, c := range strings.Fields(class) {
		if c != "active" {
			classes = append(classes, c)
		}
	}
	if code == lang {
		classes = append(classes, "active")
	}
	setAttr(n, "class", strings.Join(classes, " "))
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
