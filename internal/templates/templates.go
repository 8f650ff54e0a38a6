// Package templates holds the catalog of insertable section templates.
package templates

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/section"
)

// Kind says how a template is inserted.
type Kind string

const (
	// KindSection inserts a whole named section above render.
	KindSection Kind = "section"
	// KindData appends lines to the data section, creating it if needed.
	KindData Kind = "data"
	// KindRender appends lines to the render section.
	KindRender Kind = "render"
)

// Template is one catalog entry.
type Template struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Kind        Kind     `yaml:"kind" json:"kind"`
	Section     string   `yaml:"section,omitempty" json:"section,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Body        string   `yaml:"body,omitempty" json:"body,omitempty"`
	Lines       []string `yaml:"lines,omitempty" json:"lines,omitempty"`
}

// Apply inserts the template into source. The source is returned unchanged
// when the template cannot be placed.
func (t Template) Apply(source string) string {
	switch t.Kind {
	case KindSection:
		return section.Insert(source, section.Template{Name: t.Section, Body: t.Body})
	case KindData:
		return section.InsertIntoData(source, t.Lines)
	case KindRender:
		return section.InsertIntoRender(source, t.Lines)
	default:
		return source
	}
}

// Catalog is an ordered set of templates.
type Catalog struct {
	Templates []Template `yaml:"templates"`

	byID map[string]int
}

//go:embed catalog.yaml
var defaultCatalog []byte

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultCatalog)
})

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("templates: embedded catalog is invalid: %v", err))
	}

	return c
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewIOError("ERR_TEMPLATE_IO", "read template catalog", err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "invalid template catalog: "+err.Error())
	}

	c.byID = make(map[string]int, len(c.Templates))
	for i, t := range c.Templates {
		if err := validate(t); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "duplicate template id: "+t.ID)
		}
		c.byID[t.ID] = i
	}

	return &c, nil
}

func validate(t Template) error {
	invalid := func(msg string) error {
		return apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, fmt.Sprintf("template %q: %s", t.ID, msg))
	}

	if t.ID == "" {
		return invalid("missing id")
	}
	switch t.Kind {
	case KindSection:
		if t.Section == "" {
			return invalid("section templates need a section name")
		}
		if err := section.Validate("component T { " + t.Section + " { " + t.Body + " } }"); err != nil {
			return invalid("unbalanced braces in body")
		}
	case KindData, KindRender:
		if len(t.Lines) == 0 {
			return invalid("no lines")
		}
	default:
		return invalid("unknown kind " + string(t.Kind))
	}

	return nil
}

// Get returns the template with the given id.
func (c *Catalog) Get(id string) (Template, error) {
	i, ok := c.byID[id]
	if !ok {
		return Template{}, apperrors.NewValidationError(apperrors.ErrCodeTemplateNotFound, "unknown template: "+id)
	}

	return c.Templates[i], nil
}

// All returns the templates in catalog order.
func (c *Catalog) All() []Template {
	return append([]Template(nil), c.Templates...)
}
