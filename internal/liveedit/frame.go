package liveedit

import (
	"bytes"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// Frame is the DOM of the preview the editor mutates optimistically.
type Frame interface {
	SetText(sel Selector, text string) error
	SetClassName(sel Selector, className string) error
	SetStyle(sel Selector, property, value string) error
	Text(sel Selector) (string, error)
}

// ErrElementNotFound is returned when a selector matches nothing.
var ErrElementNotFound = apperrors.NewValidationError("ERR_ELEMENT_NOT_FOUND", "no element matches selector")

// HTMLFrame is an in-memory DOM of the rendered preview. It mirrors the
// browser frame so optimistic patches can be checked and replayed.
type HTMLFrame struct {
	mu   sync.RWMutex
	root *html.Node
}

// NewHTMLFrame parses a rendered document.
func NewHTMLFrame(doc string) (*HTMLFrame, error) {
	f := &HTMLFrame{}
	if err := f.Load(doc); err != nil {
		return nil, err
	}

	return f, nil
}

// Load replaces the DOM with a freshly rendered document.
func (f *HTMLFrame) Load(doc string) error {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return apperrors.NewRenderError(apperrors.ErrCodeRenderFailed, "parse preview document", err)
	}

	f.mu.Lock()
	f.root = root
	f.mu.Unlock()

	return nil
}

// HTML serializes the current DOM.
func (f *HTMLFrame) HTML() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, f.root); err != nil {
		return ""
	}

	return buf.String()
}

// SetText replaces the children of the matched element with one text node.
func (f *HTMLFrame) SetText(sel Selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.find(sel)
	if n == nil {
		return notFound(sel)
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})

	return nil
}

// SetClassName replaces the class attribute of the matched element.
func (f *HTMLFrame) SetClassName(sel Selector, className string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.find(sel)
	if n == nil {
		return notFound(sel)
	}
	setAttr(n, "class", className)

	return nil
}

// SetStyle sets one inline style property of the matched element. An empty
// value removes the property.
func (f *HTMLFrame) SetStyle(sel Selector, property, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.find(sel)
	if n == nil {
		return notFound(sel)
	}

	style := ParseStyle(getAttr(n, "style"))
	if value == "" {
		delete(style, property)
	} else {
		style[property] = value
	}
	setAttr(n, "style", FormatStyle(style))

	return nil
}

// Style returns one inline style property of the matched element.
func (f *HTMLFrame) Style(sel Selector, property string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.find(sel)
	if n == nil {
		return "", notFound(sel)
	}

	return ParseStyle(getAttr(n, "style"))[property], nil
}

// Text returns the text content of the matched element.
func (f *HTMLFrame) Text(sel Selector) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.find(sel)
	if n == nil {
		return "", notFound(sel)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return b.String(), nil
}

// Attr returns an attribute of the matched element.
func (f *HTMLFrame) Attr(sel Selector, key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.find(sel)
	if n == nil {
		return "", notFound(sel)
	}

	return getAttr(n, key), nil
}

// find returns the first element in document order matching sel.
func (f *HTMLFrame) find(sel Selector) *html.Node {
	if f.root == nil {
		return nil
	}
	tag := atom.Lookup([]byte(sel.Tag))

	var match *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && matches(n, tag, sel) {
			match = n
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(f.root)

	return match
}

func matches(n *html.Node, tag atom.Atom, sel Selector) bool {
	if tag != 0 {
		if n.DataAtom != tag {
			return false
		}
	} else if !strings.EqualFold(n.Data, sel.Tag) {
		return false
	}
	if sel.Class == "" {
		return true
	}
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == sel.Class {
			return true
		}
	}

	return false
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}

	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func notFound(sel Selector) error {
	return apperrors.NewValidationError(ErrElementNotFound.Code, "no element matches "+sel.String()).
		WithContext("selector", sel.String())
}

// ParseStyle parses an inline style declaration list.
func ParseStyle(s string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}

	return out
}

// FormatStyle renders declarations sorted by property.
func FormatStyle(style map[string]string) string {
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+style[k])
	}

	return strings.Join(parts, "; ")
}
