package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/section"
)

const shop = `component Shop {
  props {
    title: string = "Shop"
  }
  render {
    <h1>{title}</h1>
  }
}
`

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.NotEmpty(t, c.All())

	for _, tmpl := range c.All() {
		t.Run(tmpl.ID, func(t *testing.T) {
			out := tmpl.Apply(shop)
			assert.NotEqual(t, shop, out)
			assert.NoError(t, section.Validate(out))
		})
	}
}

func TestApplySectionTemplate(t *testing.T) {
	hero, err := Default().Get("hero")
	require.NoError(t, err)

	out := hero.Apply(shop)
	assert.Equal(t, []string{"props", "hero", "render"}, section.Names(section.Parse(out)))
	assert.Equal(t, out, hero.Apply(out), "second insert of the same section is a no-op")
}

func TestApplyDataTemplateSynthesizesSection(t *testing.T) {
	tmpl, err := Default().Get("featured-products")
	require.NoError(t, err)

	out := tmpl.Apply(shop)
	names := section.Names(section.Parse(out))
	assert.Equal(t, []string{"props", "data", "render"}, names)
	assert.Contains(t, out, `featured = fetch("/api/products?featured=true") @cache(5m)`)

	again, err := Default().Get("categories")
	require.NoError(t, err)
	out = again.Apply(out)
	data, ok := section.Find(section.Parse(out), "data")
	require.True(t, ok)
	assert.True(t, strings.Contains(data.Raw, "featured =") && strings.Contains(data.Raw, "categories ="))
}

func TestGetUnknown(t *testing.T) {
	_, err := Default().Get("nope")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTemplateNotFound, apperrors.CodeOf(err))
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := map[string]string{
		"bad yaml":      "templates: [",
		"missing id":    "templates:\n  - kind: data\n    lines: [x]\n",
		"unknown kind":  "templates:\n  - id: a\n    kind: style\n",
		"no lines":      "templates:\n  - id: a\n    kind: render\n",
		"no section":    "templates:\n  - id: a\n    kind: section\n    body: x\n",
		"unbalanced":    "templates:\n  - id: a\n    kind: section\n    section: s\n    body: '{'\n",
		"duplicate ids": "templates:\n  - id: a\n    kind: data\n    lines: [x]\n  - id: a\n    kind: data\n    lines: [y]\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("templates:\n  - id: faq\n    kind: section\n    section: faq\n    body: <dl></dl>\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	tmpl, err := c.Get("faq")
	require.NoError(t, err)
	assert.Equal(t, KindSection, tmpl.Kind)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
