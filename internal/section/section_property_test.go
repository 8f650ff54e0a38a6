//go:build property
// +build property

package section

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var sectionNames = []string{"props", "data", "style", "render"}

func buildSource(bodies []string, inline bool) string {
	var b strings.Builder
	b.WriteString("component Generated {")
	for i, body := range bodies {
		if inline {
			fmt.Fprintf(&b, " %s { %s }", sectionNames[i], body)
			continue
		}
		fmt.Fprintf(&b, "\n  %s {\n    %s\n  }", sectionNames[i], body)
	}
	if inline {
		b.WriteString(" }")
	} else {
		b.WriteString("\n}\n")
	}

	return b.String()
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// TestSectionProperties checks the structural invariants of the parser.
func TestSectionProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: spans are ordered, non-overlapping and reconstruct the source
	properties.Property("spans reconstruct source", prop.ForAll(
		func(bodies []string, inline bool) bool {
			src := buildSource(bodies, inline)
			sections := Parse(src)
			if len(sections) != len(bodies) {
				return false
			}
			prevEnd := 0
			for _, s := range sections {
				if s.Start < prevEnd || s.End < s.Start || src[s.Start:s.End] != s.Raw {
					return false
				}
				prevEnd = s.End
			}
			return Reconstruct(src, sections) == src
		},
		gen.SliceOfN(4, gen.AlphaString()),
		gen.Bool(),
	))

	// Property: deleting an inserted template restores the source
	properties.Property("insert then delete round-trips", prop.ForAll(
		func(bodies []string, name, body string, inline bool) bool {
			src := buildSource(bodies, inline)
			tmpl := Template{Name: "tmpl" + name, Body: body}

			inserted := Insert(src, tmpl)
			if Validate(inserted) != nil {
				return false
			}
			return squash(Delete(inserted, Section{Name: tmpl.Name})) == squash(src)
		},
		gen.SliceOfN(4, gen.AlphaString()),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Bool(),
	))

	// Property: moving an interior section up then down restores the order
	properties.Property("move up then down restores", prop.ForAll(
		func(bodies []string, idx int, inline bool) bool {
			src := buildSource(bodies, inline)
			target := Section{Name: sectionNames[idx]}

			up := MoveUp(src, target, Parse(src))
			back := MoveDown(up, target, Parse(up))
			return back == src
		},
		gen.SliceOfN(4, gen.AlphaString()),
		gen.IntRange(1, 2),
		gen.Bool(),
	))

	// Property: generated documents always validate
	properties.Property("generated documents validate", prop.ForAll(
		func(bodies []string, inline bool) bool {
			return Validate(buildSource(bodies, inline)) == nil
		},
		gen.SliceOfN(4, gen.AlphaString()),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
