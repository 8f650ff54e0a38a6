package section

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const greetingSource = `component Greeting {
  props {
    title: string = "Hi"
  }
  render {
    <h1 className="text-2xl">Hi</h1>
    <p className="text-2xl text-gray-500">Hi there</p>
  }
}
`

func TestPatchTextScopedToRender(t *testing.T) {
	got, ok := PatchText(greetingSource, "Hi", "Welcome", RenderScope)

	assert.True(t, ok)
	assert.Contains(t, got, `title: string = "Hi"`, "props must not be touched")
	assert.Contains(t, got, `<h1 className="text-2xl">Welcome</h1>`)
	assert.Contains(t, got, `>Hi there</p>`, "only the first delimited match is replaced")
}

func TestPatchTextWholeDocumentPrefersTextNodes(t *testing.T) {
	got, ok := PatchText(greetingSource, "Hi", "Hello", Scope{})

	assert.True(t, ok)
	assert.Contains(t, got, `title: string = "Hi"`)
	assert.Contains(t, got, `>Hello</h1>`)
}

func TestPatchTextRequiresWholeTextNode(t *testing.T) {
	got, ok := PatchText(greetingSource, "Hi there", "Hey", RenderScope)
	assert.True(t, ok)
	assert.Contains(t, got, `>Hey</p>`)

	long := "component A {\n  render {\n    <p className=\"lead\">Fresh roasted coffee beans, delivered weekly</p>\n  }\n}\n"
	got, ok = PatchText(long, "Fresh roasted coffee", "Short", RenderScope)
	assert.False(t, ok, "a prefix of a text node is not the text node")
	assert.Equal(t, long, got)

	got, ok = PatchText(greetingSource, "string", "text", Scope{Section: "props"})
	assert.False(t, ok, "text outside markup is never a text node")
	assert.Equal(t, greetingSource, got)
}

func TestPatchTextWithSurroundingWhitespace(t *testing.T) {
	src := "component A {\n  render {\n    <h2>\n      Our story\n    </h2>\n  }\n}\n"

	got, ok := PatchText(src, "Our story", "About us", RenderScope)
	assert.True(t, ok)
	assert.Contains(t, got, "      About us\n")
}

func TestPatchTextAll(t *testing.T) {
	src := "component A { render { <li>Sale</li><li>New</li><li>Sale</li> } }"
	got, ok := PatchText(src, "Sale", "Deals", Scope{Section: "render", All: true})

	assert.True(t, ok)
	assert.Equal(t, "component A { render { <li>Deals</li><li>New</li><li>Deals</li> } }", got)
}

func TestPatchTextMissing(t *testing.T) {
	got, ok := PatchText(greetingSource, "Goodbye", "x", RenderScope)
	assert.False(t, ok)
	assert.Equal(t, greetingSource, got)

	got, ok = PatchText(greetingSource, "Hi", "x", Scope{Section: "data"})
	assert.False(t, ok)
	assert.Equal(t, greetingSource, got)

	got, ok = PatchText(greetingSource, "  ", "x", RenderScope)
	assert.False(t, ok)
	assert.Equal(t, greetingSource, got)
}

func TestPatchClassListPrefersExactAttribute(t *testing.T) {
	got, ok := PatchClassList(greetingSource, "text-2xl", "text-3xl font-bold", RenderScope)

	assert.True(t, ok)
	assert.Contains(t, got, `<h1 className="text-3xl font-bold">`)
	assert.Contains(t, got, `<p className="text-2xl text-gray-500">`)
}

func TestPatchClassListPartialValue(t *testing.T) {
	got, ok := PatchClassList(greetingSource, "text-2xl text-gray-500", "text-lg", RenderScope)

	assert.True(t, ok)
	assert.Contains(t, got, `<p className="text-lg">`)
}

func TestReplaceLiteral(t *testing.T) {
	got, ok := ReplaceLiteral(greetingSource, "h1", "h2", Scope{Section: "render", All: true})

	assert.True(t, ok)
	assert.Contains(t, got, `<h2 className="text-2xl">Hi</h2>`)
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "line comment",
			input:    "component A { // hero\n render { } }",
			expected: "component A { \n render { } }",
		},
		{
			name:     "block comment",
			input:    "component A { render { <p>x</p> /* note */ } }",
			expected: "component A { render { <p>x</p>  } }",
		},
		{
			name:     "url in attribute",
			input:    `component A { render { <a href="https://shop.example">x</a> } }`,
			expected: `component A { render { <a href="https://shop.example">x</a> } }`,
		},
		{
			name:     "url outside quotes",
			input:    "component A { data { x = fetch(https://api.example/p) } }",
			expected: "component A { data { x = fetch(https://api.example/p) } }",
		},
		{
			name:     "comment marker inside string",
			input:    `component A { props { sep: string = "//" } }`,
			expected: `component A { props { sep: string = "//" } }`,
		},
		{
			name:     "apostrophe does not swallow following lines",
			input:    "component A {\n render { <p>Don't</p> }\n // gone\n}",
			expected: "component A {\n render { <p>Don't</p> }\n \n}",
		},
		{
			name:     "unterminated block comment",
			input:    "component A { /* open",
			expected: "component A { ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripComments(tt.input))
		})
	}
}

func TestPatchStyle(t *testing.T) {
	got, ok := PatchStyle(greetingSource, "h1", "text-2xl", "color", "red", RenderScope)
	assert.True(t, ok)
	assert.Contains(t, got, `<h1 className="text-2xl" style="color: red">Hi</h1>`)

	got, ok = PatchStyle(got, "h1", "text-2xl", "margin-top", "4px", RenderScope)
	assert.True(t, ok)
	assert.Contains(t, got, `style="color: red; margin-top: 4px"`)

	got, ok = PatchStyle(got, "h1", "text-2xl", "color", "", RenderScope)
	assert.True(t, ok)
	assert.Contains(t, got, `style="margin-top: 4px"`)
}

func TestPatchStyleNoMatch(t *testing.T) {
	got, ok := PatchStyle(greetingSource, "h2", "text-2xl", "color", "red", RenderScope)
	assert.False(t, ok)
	assert.Equal(t, greetingSource, got)

	got, ok = PatchStyle(greetingSource, "h1", "text-2xl", "color", "", RenderScope)
	assert.False(t, ok)
	assert.Equal(t, greetingSource, got)
}
