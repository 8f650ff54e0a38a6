// Package accessibility audits rendered storefront documents against a small
// set of WCAG level A rules, so problems show up while the vendor edits
// rather than after publishing.
package accessibility

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Impact ranks how badly a violation affects users.
type Impact string

const (
	ImpactCritical Impact = "critical"
	ImpactSerious  Impact = "serious"
	ImpactModerate Impact = "moderate"
)

// Rule is one audit check.
type Rule struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
	// Criterion is the WCAG success criterion the rule maps to.
	Criterion string `json:"criterion"`

	check func(d *document) []finding
}

// Violation is one failed check on one element.
type Violation struct {
	Rule      string `json:"rule"`
	Impact    Impact `json:"impact"`
	Criterion string `json:"criterion"`
	Selector  string `json:"selector"`
	Message   string `json:"message"`
}

// Report is the outcome of an audit.
type Report struct {
	Violations []Violation `json:"violations"`
	Passed     []string    `json:"passed"`
}

// OK reports whether no rule failed.
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// Count returns the number of violations with the given impact.
func (r Report) Count(impact Impact) int {
	n := 0
	for _, v := range r.Violations {
		if v.Impact == impact {
			n++
		}
	}
	return n
}

type finding struct {
	node    *html.Node
	message string
}

// document is the parsed page with its elements in document order. Script
// and style contents never count as page content.
type document struct {
	root     *html.Node
	elements []*html.Node
}

func parse(src string) (*document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	d := &document{root: root}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Template {
				return
			}
			d.elements = append(d.elements, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return d, nil
}

func (d *document) each(a atom.Atom, fn func(n *html.Node)) {
	for _, n := range d.elements {
		if n.DataAtom == a {
			fn(n)
		}
	}
}

// Rules returns the audit rules in the order they run.
func Rules() []Rule {
	return rules
}

var rules = []Rule{
	{
		ID:          "image-alt",
		Description: "Images must have alternative text",
		Impact:      ImpactCritical,
		Criterion:   "1.1.1",
		check: func(d *document) []finding {
			var out []finding
			d.each(atom.Img, func(n *html.Node) {
				if _, ok := attr(n, "alt"); !ok && !hidden(n) {
					out = append(out, finding{n, "Image missing alt attribute"})
				}
			})
			return out
		},
	},
	{
		ID:          "button-name",
		Description: "Buttons must have accessible names",
		Impact:      ImpactCritical,
		Criterion:   "4.1.2",
		check: func(d *document) []finding {
			var out []finding
			d.each(atom.Button, func(n *html.Node) {
				if !hasAccessibleName(n) {
					out = append(out, finding{n, "Button missing accessible name"})
				}
			})
			return out
		},
	},
	{
		ID:          "link-name",
		Description: "Links must have discernible text",
		Impact:      ImpactSerious,
		Criterion:   "2.4.4",
		check: func(d *document) []finding {
			var out []finding
			d.each(atom.A, func(n *html.Node) {
				if _, ok := attr(n, "href"); ok && !hasAccessibleName(n) {
					out = append(out, finding{n, "Link missing discernible text"})
				}
			})
			return out
		},
	},
	{
		ID:          "form-label",
		Description: "Form elements must have labels",
		Impact:      ImpactCritical,
		Criterion:   "3.3.2",
		check: func(d *document) []finding {
			labelled := make(map[string]bool)
			d.each(atom.Label, func(n *html.Node) {
				if id, ok := attr(n, "for"); ok {
					labelled[id] = true
				}
			})

			var out []finding
			for _, n := range d.elements {
				if !isFormControl(n) {
					continue
				}
				if hasLabel(n, labelled) {
					continue
				}
				out = append(out, finding{n, "Form control missing associated label"})
			}
			return out
		},
	},
	{
		ID:          "heading-order",
		Description: "Heading levels should only increase by one",
		Impact:      ImpactModerate,
		Criterion:   "1.3.1",
		check: func(d *document) []finding {
			var out []finding
			prev := 0
			for _, n := range d.elements {
				level := headingLevel(n)
				if level == 0 {
					continue
				}
				if prev > 0 && level > prev+1 {
					out = append(out, finding{n, fmt.Sprintf("Heading jumps from h%d to h%d", prev, level)})
				}
				prev = level
			}
			return out
		},
	},
	{
		ID:          "html-lang",
		Description: "The html element must have a lang attribute",
		Impact:      ImpactSerious,
		Criterion:   "3.1.1",
		check: func(d *document) []finding {
			var out []finding
			d.each(atom.Html, func(n *html.Node) {
				if lang, ok := attr(n, "lang"); !ok || strings.TrimSpace(lang) == "" {
					out = append(out, finding{n, "HTML element missing lang attribute"})
				}
			})
			return out
		},
	},
	{
		ID:          "document-title",
		Description: "Documents must contain a non-empty title element",
		Impact:      ImpactSerious,
		Criterion:   "2.4.2",
		check: func(d *document) []finding {
			found := false
			d.each(atom.Title, func(n *html.Node) {
				if strings.TrimSpace(textContent(n)) != "" {
					found = true
				}
			})
			if found {
				return nil
			}
			var at *html.Node
			d.each(atom.Html, func(n *html.Node) { at = n })
			return []finding{{at, "Document has no title"}}
		},
	},
	{
		ID:          "duplicate-id",
		Description: "IDs must be unique",
		Impact:      ImpactSerious,
		Criterion:   "4.1.1",
		check: func(d *document) []finding {
			seen := make(map[string]bool)
			var out []finding
			for _, n := range d.elements {
				id, ok := attr(n, "id")
				if !ok || id == "" {
					continue
				}
				if seen[id] {
					out = append(out, finding{n, "Duplicate ID: " + id})
				}
				seen[id] = true
			}
			return out
		},
	},
}

// Audit runs every rule over a rendered document.
func Audit(src string) (Report, error) {
	d, err := parse(src)
	if err != nil {
		return Report{}, err
	}

	report := Report{Violations: []Violation{}, Passed: []string{}}
	for _, rule := range rules {
		found := rule.check(d)
		if len(found) == 0 {
			report.Passed = append(report.Passed, rule.ID)
			continue
		}
		for _, f := range found {
			report.Violations = append(report.Violations, Violation{
				Rule:      rule.ID,
				Impact:    rule.Impact,
				Criterion: rule.Criterion,
				Selector:  selector(f.node),
				Message:   f.message,
			})
		}
	}

	sort.SliceStable(report.Violations, func(i, j int) bool {
		return rank(report.Violations[i].Impact) < rank(report.Violations[j].Impact)
	})

	return report, nil
}

func rank(i Impact) int {
	switch i {
	case ImpactCritical:
		return 0
	case ImpactSerious:
		return 1
	default:
		return 2
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hidden(n *html.Node) bool {
	if v, ok := attr(n, "aria-hidden"); ok && v == "true" {
		return true
	}
	if v, ok := attr(n, "role"); ok && (v == "presentation" || v == "none") {
		return true
	}
	return false
}

func textContent(n *html.Node) string {
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
	return b.String()
}

func hasAccessibleName(n *html.Node) bool {
	if strings.TrimSpace(textContent(n)) != "" {
		return true
	}
	for _, key := range []string{"aria-label", "aria-labelledby", "title"} {
		if v, ok := attr(n, key); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}

	// An image with alt text names its parent link or button.
	found := false
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode && c.DataAtom == atom.Img {
			if alt, ok := attr(c, "alt"); ok && strings.TrimSpace(alt) != "" {
				found = true
			}
		}
		for k := c.FirstChild; k != nil && !found; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return found
}

func isFormControl(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Select, atom.Textarea:
		return true
	case atom.Input:
		t, _ := attr(n, "type")
		switch strings.ToLower(t) {
		case "hidden", "submit", "button", "reset", "image":
			return false
		}
		return true
	}
	return false
}

func hasLabel(n *html.Node, labelled map[string]bool) bool {
	for _, key := range []string{"aria-label", "aria-labelledby"} {
		if v, ok := attr(n, key); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	if id, ok := attr(n, "id"); ok && labelled[id] {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Label {
			return true
		}
	}
	return false
}

func headingLevel(n *html.Node) int {
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

// selector names n the way a stylesheet would: tag#id, else tag.class.list.
func selector(n *html.Node) string {
	if n == nil {
		return "html"
	}
	tag := strings.ToLower(n.Data)

	if id, ok := attr(n, "id"); ok && id != "" {
		return tag + "#" + id
	}
	if class, ok := attr(n, "class"); ok {
		if classes := strings.Fields(class); len(classes) > 0 {
			return tag + "." + strings.Join(classes, ".")
		}
	}
	return tag
}
