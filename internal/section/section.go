// Package section parses component source into named, offset-addressable
// sections and performs structural and textual edits on it.
//
// Component source has exactly one top-level block:
//
//	component Hero {
//	  props  { title: string = "Hi" }
//	  data   { products = fetch("/api/products") @cache(5m) }
//	  render { <h1 className="text-xl">{title}</h1> }
//	}
//
// Sections are found by counting braces, never by indentation, so the scanner
// does not need to understand the markup inside a section. A section whose
// closing brace is missing extends to the end of the document.
package section

import (
	"fmt"
	"strings"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// Type classifies a section by its keyword.
type Type string

const (
	TypeProps  Type = "props"
	TypeData   Type = "data"
	TypeRender Type = "render"
	TypeOther  Type = "other"
)

// TypeOf maps a section keyword to its Type.
func TypeOf(name string) Type {
	switch name {
	case "props":
		return TypeProps
	case "data":
		return TypeData
	case "render":
		return TypeRender
	default:
		return TypeOther
	}
}

// Section is a derived view over the source. It is recomputed on every parse;
// identity across edits is by Name since offsets shift after any patch.
type Section struct {
	Name string `json:"name"`
	Type Type   `json:"type"`

	// Start is the first byte of the section's line when only whitespace
	// precedes the keyword, otherwise the keyword itself. End is exclusive and
	// sits right after the closing brace.
	Start int `json:"startOffset"`
	End   int `json:"endOffset"`

	// BodyStart is the offset right after the opening brace.
	BodyStart int    `json:"bodyStart"`
	Raw       string `json:"rawText"`

	// Closed is false when the closing brace was never found and End is the
	// document length.
	Closed bool `json:"closed"`
}

// CloseBrace returns the offset of the section's closing brace, or -1.
func (s Section) CloseBrace() int {
	if !s.Closed {
		return -1
	}

	return s.End - 1
}

// Body returns the text between the braces.
func (s Section) Body(source string) string {
	end := s.End
	if s.Closed {
		end--
	}
	if s.BodyStart > end || end > len(source) {
		return ""
	}

	return source[s.BodyStart:end]
}

// Component is the single top-level component block.
type Component struct {
	Name      string
	Start     int
	BodyStart int
	End       int
	Closed    bool
}

var (
	// ErrUnbalanced is returned for documents whose braces do not balance.
	ErrUnbalanced = apperrors.NewValidationError(apperrors.ErrCodeUnbalancedBraces, "unbalanced braces")
	// ErrNoComponent is returned when no top-level component block exists.
	ErrNoComponent = apperrors.NewValidationError("ERR_NO_COMPONENT", "no component block")
	// ErrMultipleComponents is returned when more than one top-level component exists.
	ErrMultipleComponents = apperrors.NewValidationError("ERR_MULTIPLE_COMPONENTS", "more than one component block")
)

type scanResult struct {
	component  *Component
	components int
	sections   []Section
	finalDepth int
	// negativeAt is the offset where the running depth first went below
	// zero, or -1.
	negativeAt int
}

func scan(source string) scanResult {
	res := scanResult{negativeAt: -1}

	depth := 0
	inComponent := false
	var open *Section

	for i := 0; i < len(source); i++ {
		switch source[i] {
		case '{':
			switch {
			case depth == 0:
				if name, ok := componentHeader(source, i); ok {
					res.components++
					if res.component == nil {
						start := strings.LastIndex(source[:i], "component")
						res.component = &Component{Name: name, Start: start, BodyStart: i + 1, End: len(source)}
						inComponent = true
					}
				}
			case depth == 1 && inComponent && open == nil:
				if name, kw, ok := sectionHeader(source, i); ok {
					open = &Section{
						Name:      name,
						Type:      TypeOf(name),
						Start:     sectionStart(source, kw),
						BodyStart: i + 1,
					}
				}
			}
			depth++

		case '}':
			depth--
			if depth < 0 {
				if res.negativeAt < 0 {
					res.negativeAt = i
				}
				depth = 0
				continue
			}
			if open != nil && depth == 1 {
				open.End = i + 1
				open.Closed = true
				open.Raw = source[open.Start:open.End]
				res.sections = append(res.sections, *open)
				open = nil
			}
			if depth == 0 && inComponent {
				res.component.End = i + 1
				res.component.Closed = true
				inComponent = false
			}
		}
	}

	if open != nil {
		open.End = len(source)
		open.Raw = source[open.Start:]
		res.sections = append(res.sections, *open)
	}
	res.finalDepth = depth

	return res
}

// Parse returns the sections of the component in source order.
func Parse(source string) []Section {
	return scan(source).sections
}

// ParseComponent locates the top-level component block.
func ParseComponent(source string) (Component, error) {
	res := scan(source)
	if res.component == nil {
		return Component{}, ErrNoComponent
	}

	return *res.component, nil
}

// Validate rejects documents that a programmatic or AI-sourced replacement
// must never produce: unbalanced braces or anything other than exactly one
// top-level component.
func Validate(source string) error {
	res := scan(source)

	if res.negativeAt >= 0 {
		line, col := position(source, res.negativeAt)
		return fmt.Errorf("%w: unexpected '}' at %d:%d", ErrUnbalanced, line, col)
	}
	if res.finalDepth != 0 {
		return fmt.Errorf("%w: %d unclosed '{' at end of document", ErrUnbalanced, res.finalDepth)
	}

	switch {
	case res.components == 0:
		return ErrNoComponent
	case res.components > 1:
		return fmt.Errorf("%w: found %d", ErrMultipleComponents, res.components)
	}

	return nil
}

// Find returns the section called name.
func Find(sections []Section, name string) (Section, bool) {
	i := indexOf(sections, name)
	if i < 0 {
		return Section{}, false
	}

	return sections[i], true
}

// Names lists section names in source order.
func Names(sections []Section) []string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.Name
	}

	return names
}

// Reconstruct concatenates the gaps between sections and the sections'
// raw text. For sections produced by Parse(source) the result is source.
func Reconstruct(source string, sections []Section) string {
	var b strings.Builder
	b.Grow(len(source))

	pos := 0
	for _, s := range sections {
		if s.Start < pos || s.End > len(source) {
			continue
		}
		b.WriteString(source[pos:s.Start])
		b.WriteString(s.Raw)
		pos = s.End
	}
	b.WriteString(source[pos:])

	return b.String()
}

func indexOf(sections []Section, name string) int {
	for i, s := range sections {
		if s.Name == name {
			return i
		}
	}

	return -1
}

// componentHeader reports whether the '{' at i opens "component <Name>".
func componentHeader(source string, i int) (string, bool) {
	name, start, ok := identBefore(source, i)
	if !ok {
		return "", false
	}
	kw, _, ok := identBefore(source, start)
	if !ok || kw != "component" {
		return "", false
	}

	return name, true
}

// sectionHeader reports whether the '{' at i opens "<keyword> {" as the first
// token after a block boundary.
func sectionHeader(source string, i int) (string, int, bool) {
	name, start, ok := identBefore(source, i)
	if !ok {
		return "", 0, false
	}

	j := start - 1
	for j >= 0 && isSpace(source[j]) {
		j--
	}
	if j >= 0 && source[j] != '{' && source[j] != '}' && source[j] != ';' {
		return "", 0, false
	}

	return name, start, true
}

func sectionStart(source string, kw int) int {
	ls := strings.LastIndexByte(source[:kw], '\n') + 1
	if strings.TrimSpace(source[ls:kw]) == "" {
		return ls
	}

	return kw
}

// lineBased reports whether the section occupies whole lines.
func lineBased(source string, s Section) bool {
	return s.Start == 0 || source[s.Start-1] == '\n'
}

func identBefore(source string, i int) (string, int, bool) {
	j := i - 1
	for j >= 0 && isSpace(source[j]) {
		j--
	}
	end := j + 1
	for j >= 0 && isIdent(source[j]) {
		j--
	}
	start := j + 1
	if start == end || !isIdentStart(source[start]) {
		return "", 0, false
	}

	return source[start:end], start, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func position(source string, offset int) (int, int) {
	line := strings.Count(source[:offset], "\n") + 1
	col := offset - strings.LastIndexByte(source[:offset], '\n')

	return line, col
}
