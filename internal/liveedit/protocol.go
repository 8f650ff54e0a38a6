// Package liveedit implements the cross-frame protocol between the editor page
// and the sandboxed preview frame, and the inline editor that patches both the
// frame and the component source from a single user action.
package liveedit

import (
	"encoding/json"
	"net"
	"net/url"
	"strings"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// MessageType discriminates cross-frame messages.
type MessageType string

const (
	ElementClickedLive MessageType = "ELEMENT_CLICKED_LIVE"
	ElementSelected    MessageType = "ELEMENT_SELECTED"
	PageChanged        MessageType = "PAGE_CHANGED"
)

// Message is the data of one cross-frame message.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is a received message together with the origin it was posted from.
type Envelope struct {
	Origin string  `json:"origin"`
	Data   Message `json:"data"`
}

// Rect is a bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is an offset in page coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ElementClick is the payload of ELEMENT_CLICKED_LIVE and ELEMENT_SELECTED.
// Position is in frame-local coordinates. TextContent is cut short for
// display; FullText is the element's complete text.
type ElementClick struct {
	TagName     string `json:"tagName"`
	ClassList   string `json:"classList"`
	TextContent string `json:"textContent"`
	FullText    string `json:"fullText,omitempty"`
	Position    Rect   `json:"position"`
	Value       string `json:"value"`
}

// DecodeClick decodes the payload of a click message.
func DecodeClick(m Message) (ElementClick, error) {
	var c ElementClick
	if err := json.Unmarshal(m.Payload, &c); err != nil {
		return c, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "malformed click payload")
	}
	if c.TagName == "" {
		return c, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "click payload without tag name")
	}

	return c, nil
}

// ElementType is the editor's classification of a clicked element.
type ElementType string

const (
	ElementText      ElementType = "text"
	ElementHeading   ElementType = "heading"
	ElementImage     ElementType = "image"
	ElementButton    ElementType = "button"
	ElementContainer ElementType = "container"
)

// Classify maps a tag name to an element type.
func Classify(tag string) ElementType {
	switch strings.ToLower(tag) {
	case "h1", "h2", "h3":
		return ElementHeading
	case "p", "span", "div":
		return ElementText
	case "img":
		return ElementImage
	case "button", "a":
		return ElementButton
	default:
		return ElementContainer
	}
}

// Selector locates an element by tag name and first class.
type Selector struct {
	Tag   string `json:"tag"`
	Class string `json:"class,omitempty"`
}

// SelectorFor builds the selector for an element from its tag and classes.
func SelectorFor(tag string, classes []string) Selector {
	s := Selector{Tag: strings.ToLower(tag)}
	if len(classes) > 0 {
		s.Class = classes[0]
	}

	return s
}

// String returns the CSS form of the selector, escaping characters that are
// special in class selectors (md:text-xl, w-1/2).
func (s Selector) String() string {
	if s.Class == "" {
		return s.Tag
	}

	var b strings.Builder
	b.WriteString(s.Tag)
	b.WriteByte('.')
	for _, r := range s.Class {
		if strings.ContainsRune(`:/.[]#%!@`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}

	return b.String()
}

// SelectedElement is the editor's view of the clicked element. It lives only
// while the toolbar is open.
type SelectedElement struct {
	Type        ElementType `json:"elementType"`
	Tag         string      `json:"tagName"`
	TextValue   string      `json:"value"`
	ClassList   []string    `json:"classList"`
	BoundingBox Rect        `json:"boundingBox"`
	Selector    Selector    `json:"selector"`
}

// Classes returns the class list joined the way it appears in markup.
func (s SelectedElement) Classes() string {
	return strings.Join(s.ClassList, " ")
}

// NewSelection builds the selected element for a click, translating the
// frame-local position to page coordinates by adding the frame offset.
func NewSelection(c ElementClick, frameOffset Point) SelectedElement {
	classes := strings.Fields(c.ClassList)
	value := c.FullText
	if value == "" {
		value = c.TextContent
	}
	if value == "" {
		value = c.Value
	}

	return SelectedElement{
		Type:      Classify(c.TagName),
		Tag:       strings.ToLower(c.TagName),
		TextValue: value,
		ClassList: classes,
		BoundingBox: Rect{
			X:      c.Position.X + frameOffset.X,
			Y:      c.Position.Y + frameOffset.Y,
			Width:  c.Position.Width,
			Height: c.Position.Height,
		},
		Selector: SelectorFor(c.TagName, classes),
	}
}

// OriginFilter admits messages posted from exactly one origin.
type OriginFilter struct {
	origin string
}

// NewOriginFilter creates a filter for the hosting page's origin.
func NewOriginFilter(hostOrigin string) (*OriginFilter, error) {
	origin, ok := normalizeOrigin(hostOrigin)
	if !ok {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "invalid host origin: "+hostOrigin)
	}

	return &OriginFilter{origin: origin}, nil
}

// Origin returns the normalized origin the filter admits.
func (f *OriginFilter) Origin() string {
	return f.origin
}

// Allow reports whether origin equals the hosting origin in scheme, host and
// port.
func (f *OriginFilter) Allow(origin string) bool {
	got, ok := normalizeOrigin(origin)
	return ok && got == f.origin
}

func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Path != "" && u.Path != "/" || u.User != nil {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		port = "80"
		if scheme == "https" {
			port = "443"
		}
	}

	return scheme + "://" + net.JoinHostPort(host, port), true
}
