package section

import (
	"regexp"
	"strings"
)

// Scope limits a literal replacement to one section. An empty Section means
// the whole document.
type Scope struct {
	Section string
	All     bool
}

// RenderScope replaces the first match inside the render section. The live
// editor uses it so a value that also appears in props or data is never
// touched by accident.
var RenderScope = Scope{Section: "render"}

// PatchText replaces a whole text node whose content, ignoring surrounding
// whitespace, is exactly old. A prefix or any other partial match of a text
// node is not a match. It reports whether anything matched.
func PatchText(source, old, new string, scope Scope) (string, bool) {
	if strings.TrimSpace(old) == "" {
		return source, false
	}
	delimited := regexp.MustCompile(`>\s*(` + regexp.QuoteMeta(strings.TrimSpace(old)) + `)\s*<`)

	return patch(source, old, new, scope, delimited, false)
}

// PatchClassList replaces the literal class-list string old with new.
// Quoted attribute values that equal old exactly win over bare substrings.
func PatchClassList(source, old, new string, scope Scope) (string, bool) {
	quoted := regexp.MustCompile(`["'](` + regexp.QuoteMeta(old) + `)["']`)

	return patch(source, old, new, scope, quoted, true)
}

// ReplaceLiteral is a plain scoped substring replacement.
func ReplaceLiteral(source, old, new string, scope Scope) (string, bool) {
	return patch(source, old, new, scope, nil, true)
}

// patch replaces preferred's group 1 matches, falling back to bare substrings
// of old when bare is set.
func patch(source, old, new string, scope Scope, preferred *regexp.Regexp, bare bool) (string, bool) {
	if old == "" {
		return source, false
	}

	start, end, ok := scopeSpan(source, scope)
	if !ok {
		return source, false
	}
	span := source[start:end]

	var replaced string
	var found bool
	if preferred != nil {
		replaced, found = replaceGroup(span, new, preferred, scope.All)
	}
	if !found && bare {
		replaced, found = replaceBare(span, old, new, scope.All)
	}
	if !found {
		return source, false
	}

	return source[:start] + replaced + source[end:], true
}

// replaceGroup replaces capture group 1 of re's matches.
func replaceGroup(span, new string, re *regexp.Regexp, all bool) (string, bool) {
	n := 1
	if all {
		n = -1
	}
	matches := re.FindAllStringSubmatchIndex(span, n)
	if len(matches) == 0 {
		return span, false
	}

	var b strings.Builder
	pos := 0
	for _, m := range matches {
		b.WriteString(span[pos:m[2]])
		b.WriteString(new)
		pos = m[3]
	}
	b.WriteString(span[pos:])

	return b.String(), true
}

func replaceBare(span, old, new string, all bool) (string, bool) {
	if !strings.Contains(span, old) {
		return span, false
	}
	if all {
		return strings.ReplaceAll(span, old, new), true
	}

	return strings.Replace(span, old, new, 1), true
}

// PatchStyle sets one inline style property on the first <tag> element whose
// class attribute equals classList. A style attribute is added after the
// class attribute when the element has none. An empty value removes the
// property.
func PatchStyle(source, tag, classList, property, value string, scope Scope) (string, bool) {
	if tag == "" || property == "" {
		return source, false
	}

	start, end, ok := scopeSpan(source, scope)
	if !ok {
		return source, false
	}
	span := source[start:end]

	open := regexp.MustCompile(`<` + regexp.QuoteMeta(tag) + `\b[^>]*?\bclass(?:Name)?=["']` +
		regexp.QuoteMeta(classList) + `["'][^>]*>`)
	loc := open.FindStringIndex(span)
	if loc == nil {
		return source, false
	}
	elem := span[loc[0]:loc[1]]

	styleAttr := regexp.MustCompile(`\bstyle=(["'])([^"']*)["']`)
	var next string
	if m := styleAttr.FindStringSubmatchIndex(elem); m != nil {
		decls := setDeclaration(elem[m[4]:m[5]], property, value)
		next = elem[:m[4]] + decls + elem[m[5]:]
	} else {
		if value == "" {
			return source, false
		}
		classAttr := regexp.MustCompile(`\bclass(?:Name)?=["'][^"']*["']`)
		c := classAttr.FindStringIndex(elem)
		next = elem[:c[1]] + ` style="` + property + `: ` + value + `"` + elem[c[1]:]
	}
	if next == elem {
		return source, false
	}

	return source[:start+loc[0]] + next + source[start+loc[1]:], true
}

// setDeclaration updates property inside a declaration list, keeping the
// order of the other declarations.
func setDeclaration(decls, property, value string) string {
	var out []string
	found := false
	for _, d := range strings.Split(decls, ";") {
		k, _, ok := strings.Cut(d, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(k) == property {
			found = true
			if value != "" {
				out = append(out, property+": "+value)
			}
			continue
		}
		out = append(out, strings.TrimSpace(d))
	}
	if !found && value != "" {
		out = append(out, property+": "+value)
	}

	return strings.Join(out, "; ")
}

func scopeSpan(source string, scope Scope) (int, int, bool) {
	if scope.Section == "" {
		return 0, len(source), true
	}
	s, ok := Find(Parse(source), scope.Section)
	if !ok {
		return 0, 0, false
	}
	end := s.End
	if s.Closed {
		end--
	}

	return s.BodyStart, end, true
}

// StripComments removes // line comments and /* */ block comments that are
// not inside a string literal. "//" directly after ':' is kept so URLs in
// markup survive. String state ends at a newline, which keeps apostrophes in
// text nodes from swallowing the rest of the document.
func StripComments(source string) string {
	var b strings.Builder
	b.Grow(len(source))

	var quote byte
	for i := 0; i < len(source); i++ {
		c := source[i]

		if quote != 0 {
			b.WriteByte(c)
			switch {
			case c == '\\' && i+1 < len(source):
				i++
				b.WriteByte(source[i])
			case c == quote || c == '\n':
				quote = 0
			}
			continue
		}

		switch {
		case c == '"' || c == '\'' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(source) && source[i+1] == '/' && (i == 0 || source[i-1] != ':'):
			for i < len(source) && source[i] != '\n' {
				i++
			}
			if i < len(source) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(source) && source[i+1] == '*':
			end := strings.Index(source[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += 2 + end + 1
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
