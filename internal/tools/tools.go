// Package tools implements the direct-manipulation tools of the storefront
// builder. Every tool is a pure function from component source to component
// source that rewrites utility-class tokens in the render section. When the
// token a tool looks for is absent, the tool returns its input unchanged;
// callers detect the no-op by comparing output and input.
package tools

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/storefront/internal/section"
)

// Direction moves a token along its ordered scale.
type Direction int

const (
	Increase Direction = iota
	Decrease
)

// String returns the string representation of the direction
func (d Direction) String() string {
	if d == Decrease {
		return "decrease"
	}

	return "increase"
}

var (
	fontSizes = []string{
		"xs", "sm", "base", "lg", "xl", "2xl", "3xl", "4xl", "5xl", "6xl", "7xl", "8xl", "9xl",
	}
	fontWeights = []string{
		"thin", "extralight", "light", "normal", "medium", "semibold", "bold", "extrabold", "black",
	}
	gridColumns = []string{
		"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12",
	}
	spacingScale = []string{
		"0", "0.5", "1", "1.5", "2", "2.5", "3", "3.5", "4", "5", "6", "7", "8", "9", "10",
		"11", "12", "14", "16", "20", "24", "28", "32", "36", "40", "44", "48", "52", "56",
		"60", "64", "72", "80", "96",
	}
	alignments = []string{"left", "center", "right", "justify"}
)

// step moves value one position along scale, clamped at both ends.
func step(scale []string, value string, dir Direction) (string, bool) {
	for i, v := range scale {
		if v != value {
			continue
		}
		switch {
		case dir == Increase && i < len(scale)-1:
			return scale[i+1], true
		case dir == Decrease && i > 0:
			return scale[i-1], true
		default:
			return value, true
		}
	}

	return "", false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}

	return false
}

// AdjustFontSize steps every text-size token in the render section one step
// along text-xs … text-9xl.
func AdjustFontSize(source string, dir Direction) string {
	return rewriteTokens(source, func(base string) (string, bool) {
		size, ok := strings.CutPrefix(base, "text-")
		if !ok {
			return "", false
		}
		next, ok := step(fontSizes, size, dir)
		if !ok {
			return "", false
		}
		return "text-" + next, true
	})
}

// AdjustFontWeight steps every font-weight token one step along
// font-thin … font-black.
func AdjustFontWeight(source string, dir Direction) string {
	return rewriteTokens(source, func(base string) (string, bool) {
		weight, ok := strings.CutPrefix(base, "font-")
		if !ok {
			return "", false
		}
		next, ok := step(fontWeights, weight, dir)
		if !ok {
			return "", false
		}
		return "font-" + next, true
	})
}

// AdjustGridColumns steps every grid-cols-N token, keeping responsive
// prefixes such as md:.
func AdjustGridColumns(source string, dir Direction) string {
	return rewriteTokens(source, func(base string) (string, bool) {
		n, ok := strings.CutPrefix(base, "grid-cols-")
		if !ok {
			return "", false
		}
		next, ok := step(gridColumns, n, dir)
		if !ok {
			return "", false
		}
		return "grid-cols-" + next, true
	})
}

// SpacingKind selects which spacing utilities AdjustSpacing touches.
type SpacingKind string

const (
	SpacingPadding SpacingKind = "padding"
	SpacingMargin  SpacingKind = "margin"
	SpacingGap     SpacingKind = "gap"
)

var spacingPrefixes = map[SpacingKind][]string{
	SpacingPadding: {"p", "px", "py", "pt", "pr", "pb", "pl"},
	SpacingMargin:  {"m", "mx", "my", "mt", "mr", "mb", "ml"},
	SpacingGap:     {"gap", "gap-x", "gap-y", "space-x", "space-y"},
}

// AdjustSpacing steps every spacing token of the given kind along the
// spacing scale. Negative margins keep their sign.
func AdjustSpacing(source string, kind SpacingKind, dir Direction) string {
	prefixes, ok := spacingPrefixes[kind]
	if !ok {
		return source
	}

	return rewriteTokens(source, func(base string) (string, bool) {
		neg := strings.HasPrefix(base, "-")
		base = strings.TrimPrefix(base, "-")

		i := strings.LastIndexByte(base, '-')
		if i <= 0 {
			return "", false
		}
		prefix, value := base[:i], base[i+1:]
		if !contains(prefixes, prefix) {
			return "", false
		}
		next, ok := step(spacingScale, value, dir)
		if !ok {
			return "", false
		}
		out := prefix + "-" + next
		if neg {
			out = "-" + out
		}
		return out, true
	})
}

// Alignment is a text-align utility value.
type Alignment string

const (
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// SetAlignment rewrites every text-align token to the requested alignment.
func SetAlignment(source string, align Alignment) string {
	if !contains(alignments, string(align)) {
		return source
	}

	return rewriteTokens(source, func(base string) (string, bool) {
		a, ok := strings.CutPrefix(base, "text-")
		if !ok || !contains(alignments, a) {
			return "", false
		}
		return "text-" + string(align), true
	})
}

// CaseMode selects a casing transformation.
type CaseMode string

const (
	CaseUpper CaseMode = "upper"
	CaseLower CaseMode = "lower"
	CaseTitle CaseMode = "title"
)

var caseTargets = regexp.MustCompile(`(<(?:h[1-6]|button)\b[^>]*>)([^<{]+)(</)`)

// TransformCase rewrites the literal text of headings and buttons in the
// render section. Interpolations such as {title} are left alone.
func TransformCase(source string, mode CaseMode) string {
	var caser cases.Caser
	switch mode {
	case CaseUpper:
		caser = cases.Upper(language.Und)
	case CaseLower:
		caser = cases.Lower(language.Und)
	case CaseTitle:
		caser = cases.Title(language.Und)
	default:
		return source
	}

	return rewriteRender(source, func(body string) string {
		return caseTargets.ReplaceAllStringFunc(body, func(m string) string {
			parts := caseTargets.FindStringSubmatch(m)
			text := parts[2]
			core := strings.TrimSpace(text)
			if core == "" {
				return m
			}
			lead := text[:strings.Index(text, core)]
			trail := text[len(lead)+len(core):]
			return parts[1] + lead + caser.String(core) + trail + parts[3]
		})
	})
}

// Vendor carries the branding values injected into a component.
type Vendor struct {
	ID           string
	Name         string
	Tagline      string
	PrimaryColor string
}

var (
	namePlaceholders = []string{"{{vendor.name}}", "{{vendorName}}", "Your Store", "Store Name", "Your Brand"}
	brandProps       = regexp.MustCompile(`((?:vendorName|storeName|brandName)\s*:\s*\w+\s*=\s*")[^"]*(")`)
	taglineProp      = regexp.MustCompile(`(tagline\s*:\s*\w+\s*=\s*")[^"]*(")`)
)

// InjectVendorBranding replaces store-name placeholders in the render section
// and the defaults of vendorName/storeName/brandName props with the vendor's
// values.
func InjectVendorBranding(source string, vendor Vendor) string {
	if strings.TrimSpace(vendor.Name) == "" {
		return source
	}

	out := rewriteRender(source, func(body string) string {
		for _, p := range namePlaceholders {
			body = strings.ReplaceAll(body, p, vendor.Name)
		}
		if vendor.Tagline != "" {
			body = strings.ReplaceAll(body, "{{vendor.tagline}}", vendor.Tagline)
		}
		if vendor.PrimaryColor != "" {
			body = strings.ReplaceAll(body, "{{vendor.color}}", vendor.PrimaryColor)
		}
		return body
	})

	out = rewriteSection(out, "props", func(body string) string {
		body = brandProps.ReplaceAllString(body, "${1}"+escapeReplacement(vendor.Name)+"${2}")
		if vendor.Tagline != "" {
			body = taglineProp.ReplaceAllString(body, "${1}"+escapeReplacement(vendor.Tagline)+"${2}")
		}
		return body
	})

	return out
}

func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// classAttr matches a quoted class or className value; group 2 is the list.
var classAttr = regexp.MustCompile(`(\bclass(?:Name)?=["'])([^"']*)(["'])`)

// rewriteTokens applies fn to the base of every class in the class
// attributes of the render section. Text nodes are never touched.
// Responsive and state prefixes ("md:", "hover:") are kept.
func rewriteTokens(source string, fn func(base string) (string, bool)) string {
	return rewriteRender(source, func(body string) string {
		return rewriteClassLists(body, func(list string) string {
			return mapTokens(list, func(tok string) string {
				prefix, base := "", tok
				if i := strings.LastIndexByte(tok, ':'); i >= 0 {
					prefix, base = tok[:i+1], tok[i+1:]
				}
				if next, ok := fn(base); ok {
					return prefix + next
				}
				return tok
			})
		})
	})
}

// rewriteClassLists runs fn over the value of every class attribute in body.
func rewriteClassLists(body string, fn func(list string) string) string {
	matches := classAttr.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body
	}

	var b strings.Builder
	pos := 0
	for _, m := range matches {
		b.WriteString(body[pos:m[4]])
		b.WriteString(fn(body[m[4]:m[5]]))
		pos = m[5]
	}
	b.WriteString(body[pos:])

	return b.String()
}

func rewriteRender(source string, fn func(body string) string) string {
	return rewriteSection(source, "render", fn)
}

// rewriteSection runs fn over the body of the named section. The original
// string is returned when the section is missing or fn changes nothing.
func rewriteSection(source, name string, fn func(body string) string) string {
	s, ok := section.Find(section.Parse(source), name)
	if !ok {
		return source
	}
	end := s.End
	if s.Closed {
		end--
	}

	body := source[s.BodyStart:end]
	next := fn(body)
	if next == body {
		return source
	}

	return source[:s.BodyStart] + next + source[end:]
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}

	return strings.IndexByte(":-_./[]#%", c) >= 0
}

func mapTokens(s string, fn func(tok string) string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		if !isTokenChar(s[i]) {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i
		for j < len(s) && isTokenChar(s[j]) {
			j++
		}
		b.WriteString(fn(s[i:j]))
		i = j
	}

	return b.String()
}
