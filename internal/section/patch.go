package section

import (
	"strings"
)

// Template describes a whole section to insert, e.g. from the component
// browser.
type Template struct {
	Name string
	Body string
}

// Delete removes the section named target.Name together with one trailing
// newline. When the section was the last one, a blank line left directly
// above it is trimmed as well. Unknown sections leave the source unchanged.
func Delete(source string, target Section) string {
	sections := Parse(source)
	idx := indexOf(sections, target.Name)
	if idx < 0 {
		return source
	}
	s := sections[idx]

	start, end := s.Start, s.End
	for end < len(source) && (source[end] == ' ' || source[end] == '\t') {
		end++
	}
	if lineBased(source, s) {
		switch {
		case strings.HasPrefix(source[end:], "\r\n"):
			end += 2
		case strings.HasPrefix(source[end:], "\n"):
			end++
		default:
			end = s.End
		}
	}

	if idx == len(sections)-1 && lineBased(source, s) && start > 0 {
		prevStart := strings.LastIndexByte(source[:start-1], '\n') + 1
		if prevStart < start && strings.TrimSpace(source[prevStart:start-1]) == "" {
			start = prevStart
		}
	}

	return source[:start] + source[end:]
}

// MoveUp swaps target with its preceding section. The first section cannot
// move up.
func MoveUp(source string, target Section, sections []Section) string {
	sections = fresh(source, sections)
	idx := indexOf(sections, target.Name)
	if idx <= 0 {
		return source
	}

	return swap(source, sections[idx-1], sections[idx])
}

// MoveDown swaps target with its following section. The last section cannot
// move down.
func MoveDown(source string, target Section, sections []Section) string {
	sections = fresh(source, sections)
	idx := indexOf(sections, target.Name)
	if idx < 0 || idx >= len(sections)-1 {
		return source
	}

	return swap(source, sections[idx], sections[idx+1])
}

// fresh returns sections when they still describe source, otherwise a new
// parse. Callers routinely hold a list from before the last patch.
func fresh(source string, sections []Section) []Section {
	for _, s := range sections {
		if s.Start < 0 || s.End > len(source) || s.Start > s.End || source[s.Start:s.End] != s.Raw {
			return Parse(source)
		}
	}
	if sections == nil {
		return Parse(source)
	}

	return sections
}

// swap exchanges the spans of a and b, where a precedes b.
func swap(source string, a, b Section) string {
	if !a.Closed || !b.Closed || a.End > b.Start {
		return source
	}

	var sb strings.Builder
	sb.Grow(len(source))
	sb.WriteString(source[:a.Start])
	sb.WriteString(b.Raw)
	sb.WriteString(source[a.End:b.Start])
	sb.WriteString(a.Raw)
	sb.WriteString(source[b.End:])

	return sb.String()
}

// Insert adds tmpl as a new section above render, or before the component's
// closing brace when there is no render section. A section with the same name
// already present leaves the source unchanged.
func Insert(source string, tmpl Template) string {
	if tmpl.Name == "" {
		return source
	}
	sections := Parse(source)
	if indexOf(sections, tmpl.Name) >= 0 {
		return source
	}

	if render, ok := Find(sections, "render"); ok {
		if lineBased(source, render) {
			indent := leadingSpace(source[render.Start:])
			return source[:render.Start] + block(tmpl, indent) + source[render.Start:]
		}
		return source[:render.Start] + inline(tmpl) + " " + source[render.Start:]
	}

	comp, err := ParseComponent(source)
	if err != nil || !comp.Closed {
		return source
	}
	closeAt := comp.End - 1
	ls := strings.LastIndexByte(source[:closeAt], '\n') + 1
	if ls > comp.BodyStart && strings.TrimSpace(source[ls:closeAt]) == "" {
		indent := leadingSpace(source[ls:]) + "  "
		return source[:ls] + block(tmpl, indent) + source[ls:]
	}

	return source[:closeAt] + inline(tmpl) + " " + source[closeAt:]
}

// InsertIntoData splices lines right before the data section's closing
// brace. When the component has no data section yet, one is synthesized just
// above render.
func InsertIntoData(source string, lines []string) string {
	if len(lines) == 0 {
		return source
	}
	sections := Parse(source)
	if data, ok := Find(sections, "data"); ok {
		return insertBeforeClose(source, data, lines)
	}
	if _, ok := Find(sections, "render"); !ok {
		return source
	}

	return Insert(source, Template{Name: "data", Body: strings.Join(lines, "\n")})
}

// InsertIntoRender splices lines right before the render section's closing
// brace.
func InsertIntoRender(source string, lines []string) string {
	if len(lines) == 0 {
		return source
	}
	render, ok := Find(Parse(source), "render")
	if !ok {
		return source
	}

	return insertBeforeClose(source, render, lines)
}

func insertBeforeClose(source string, s Section, lines []string) string {
	closeAt := s.CloseBrace()
	if closeAt < 0 {
		return source
	}

	ls := strings.LastIndexByte(source[:closeAt], '\n') + 1
	if ls > s.BodyStart && strings.TrimSpace(source[ls:closeAt]) == "" {
		indent := leadingSpace(source[ls:]) + "  "
		var b strings.Builder
		for _, line := range lines {
			b.WriteString(indent)
			b.WriteString(strings.TrimSpace(line))
			b.WriteByte('\n')
		}
		return source[:ls] + b.String() + source[ls:]
	}

	trimmed := make([]string, len(lines))
	for i, line := range lines {
		trimmed[i] = strings.TrimSpace(line)
	}
	prefix := source[:closeAt]
	if !strings.HasSuffix(prefix, " ") {
		prefix += " "
	}

	return prefix + strings.Join(trimmed, " ") + " " + source[closeAt:]
}

func block(tmpl Template, indent string) string {
	var b strings.Builder
	b.WriteString(indent)
	b.WriteString(tmpl.Name)
	b.WriteString(" {\n")
	for _, line := range strings.Split(strings.Trim(tmpl.Body, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			b.WriteByte('\n')
			continue
		}
		b.WriteString(indent)
		b.WriteString("  ")
		b.WriteString(strings.TrimRight(line, " \t"))
		b.WriteByte('\n')
	}
	b.WriteString(indent)
	b.WriteString("}\n")

	return b.String()
}

func inline(tmpl Template) string {
	body := strings.Join(strings.Fields(tmpl.Body), " ")
	if body == "" {
		return tmpl.Name + " { }"
	}

	return tmpl.Name + " { " + body + " }"
}

func leadingSpace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}

	return s[:i]
}
