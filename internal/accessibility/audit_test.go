package accessibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanPage = `<!DOCTYPE html><html lang="en"><head><title>Blue Fern</title>
<script>document.querySelector("img")</script></head>
<body>
  <h1>Blue Fern</h1>
  <h2>Featured</h2>
  <img src="a.png" alt="Fern pot">
  <img src="divider.png" alt="">
  <a href="/shop"><img src="cart.png" alt="Shop"></a>
  <button aria-label="Close"></button>
  <label>Email <input type="email"></label>
  <label for="q">Search</label><input id="q">
  <input type="hidden" name="csrf">
</body></html>`

func rulesOf(r Report) []string {
	var out []string
	for _, v := range r.Violations {
		out = append(out, v.Rule)
	}
	return out
}

func TestCleanPagePasses(t *testing.T) {
	r, err := Audit(cleanPage)
	require.NoError(t, err)

	assert.True(t, r.OK(), "unexpected violations: %v", r.Violations)
	assert.Len(t, r.Passed, len(Rules()))
}

func TestViolations(t *testing.T) {
	page := `<html><head></head><body>
  <h1>Shop</h1>
  <h3 id="x">Deals</h3>
  <img src="a.png" class="rounded shadow">
  <button></button>
  <a href="/cart"></a>
  <input type="text">
  <p id="x">dup</p>
</body></html>`

	r, err := Audit(page)
	require.NoError(t, err)
	assert.False(t, r.OK())

	assert.ElementsMatch(t, []string{
		"image-alt", "button-name", "link-name", "form-label",
		"heading-order", "html-lang", "document-title", "duplicate-id",
	}, rulesOf(r))

	// Critical findings come first.
	assert.Equal(t, ImpactCritical, r.Violations[0].Impact)
	assert.Equal(t, ImpactModerate, r.Violations[len(r.Violations)-1].Impact)
	assert.Equal(t, 3, r.Count(ImpactCritical))

	for _, v := range r.Violations {
		switch v.Rule {
		case "image-alt":
			assert.Equal(t, "img.rounded.shadow", v.Selector)
			assert.Equal(t, "1.1.1", v.Criterion)
		case "heading-order":
			assert.Equal(t, "h3#x", v.Selector)
			assert.Contains(t, v.Message, "h1 to h3")
		case "duplicate-id":
			assert.Equal(t, "p#x", v.Selector)
		}
	}
}

func TestDecorativeImages(t *testing.T) {
	r, err := Audit(`<html lang="en"><head><title>t</title></head><body>
  <img src="a.png" aria-hidden="true"><img src="b.png" role="presentation">
</body></html>`)
	require.NoError(t, err)
	assert.True(t, r.OK())
}

func TestScriptContentIgnored(t *testing.T) {
	r, err := Audit(`<html lang="en"><head><title>t</title></head><body>
  <template><img src="x.png"></template>
</body></html>`)
	require.NoError(t, err)
	assert.True(t, r.OK())
}
