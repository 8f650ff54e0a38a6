package tools

import (
	"sort"
	"strings"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// Params carries the string arguments of a tool invocation.
type Params map[string]string

// Param describes one tool argument.
type Param struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// Tool is a named, parameterized source transformation.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`

	// NoChange is the message shown when the tool found nothing to change.
	NoChange string `json:"-"`

	Apply func(source string, params Params) (string, error) `json:"-"`
}

// ErrNoChange is returned by Run when a tool left the source untouched.
var ErrNoChange = apperrors.NewValidationError(apperrors.ErrCodeNoChange, "nothing to change")

var directionParam = Param{
	Name:        "direction",
	Description: "Which way to step along the scale",
	Required:    true,
	Enum:        []string{"increase", "decrease"},
}

var registry = map[string]Tool{}

func register(t Tool) {
	registry[t.Name] = t
}

func init() {
	register(Tool{
		Name:        "font-size",
		Description: "Step every text size utility in the render section up or down",
		Params:      []Param{directionParam},
		NoChange:    "No text size classes to adjust",
		Apply: func(src string, p Params) (string, error) {
			dir, err := ParseDirection(p["direction"])
			if err != nil {
				return src, err
			}
			return AdjustFontSize(src, dir), nil
		},
	})

	register(Tool{
		Name:        "font-weight",
		Description: "Step every font weight utility in the render section",
		Params:      []Param{directionParam},
		NoChange:    "No font weight classes to adjust",
		Apply: func(src string, p Params) (string, error) {
			dir, err := ParseDirection(p["direction"])
			if err != nil {
				return src, err
			}
			return AdjustFontWeight(src, dir), nil
		},
	})

	register(Tool{
		Name:        "grid-columns",
		Description: "Add or remove a grid column on every grid-cols utility",
		Params:      []Param{directionParam},
		NoChange:    "No grid layout to adjust",
		Apply: func(src string, p Params) (string, error) {
			dir, err := ParseDirection(p["direction"])
			if err != nil {
				return src, err
			}
			return AdjustGridColumns(src, dir), nil
		},
	})

	register(Tool{
		Name:        "spacing",
		Description: "Step padding, margin or gap utilities along the spacing scale",
		Params: []Param{
			{
				Name:        "kind",
				Description: "Which spacing utilities to adjust",
				Required:    true,
				Enum:        []string{string(SpacingPadding), string(SpacingMargin), string(SpacingGap)},
			},
			directionParam,
		},
		NoChange: "No spacing classes of that kind to adjust",
		Apply: func(src string, p Params) (string, error) {
			dir, err := ParseDirection(p["direction"])
			if err != nil {
				return src, err
			}
			kind := SpacingKind(strings.ToLower(p["kind"]))
			if _, ok := spacingPrefixes[kind]; !ok {
				return src, invalidParam("kind", p["kind"])
			}
			return AdjustSpacing(src, kind, dir), nil
		},
	})

	register(Tool{
		Name:        "alignment",
		Description: "Set the text alignment of every aligned element",
		Params: []Param{{
			Name:        "align",
			Description: "Target alignment",
			Required:    true,
			Enum:        alignments,
		}},
		NoChange: "No text alignment classes to change",
		Apply: func(src string, p Params) (string, error) {
			align := Alignment(strings.ToLower(p["align"]))
			if !contains(alignments, string(align)) {
				return src, invalidParam("align", p["align"])
			}
			return SetAlignment(src, align), nil
		},
	})

	register(Tool{
		Name:        "text-case",
		Description: "Change the casing of heading and button text",
		Params: []Param{{
			Name:        "mode",
			Description: "Casing to apply",
			Required:    true,
			Enum:        []string{string(CaseUpper), string(CaseLower), string(CaseTitle)},
		}},
		NoChange: "No heading or button text to change",
		Apply: func(src string, p Params) (string, error) {
			mode := CaseMode(strings.ToLower(p["mode"]))
			switch mode {
			case CaseUpper, CaseLower, CaseTitle:
			default:
				return src, invalidParam("mode", p["mode"])
			}
			return TransformCase(src, mode), nil
		},
	})

	register(Tool{
		Name:        "vendor-branding",
		Description: "Replace store name placeholders with the vendor's branding",
		Params: []Param{
			{Name: "vendorName", Description: "Display name of the vendor", Required: true},
			{Name: "vendorId", Description: "Vendor identifier"},
			{Name: "tagline", Description: "Vendor tagline"},
			{Name: "color", Description: "Primary brand color"},
		},
		NoChange: "Could not find a store name placeholder to brand",
		Apply: func(src string, p Params) (string, error) {
			if strings.TrimSpace(p["vendorName"]) == "" {
				return src, invalidParam("vendorName", "")
			}
			return InjectVendorBranding(src, Vendor{
				ID:           p["vendorId"],
				Name:         p["vendorName"],
				Tagline:      p["tagline"],
				PrimaryColor: p["color"],
			}), nil
		},
	})
}

// ParseDirection parses "increase"/"decrease" and their short forms.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "increase", "up", "+", "larger", "more":
		return Increase, nil
	case "decrease", "down", "-", "smaller", "less":
		return Decrease, nil
	}

	return Increase, invalidParam("direction", s)
}

func invalidParam(name, value string) error {
	return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "invalid value for "+name).
		WithContext("param", name).
		WithContext("value", value)
}

// Lookup returns the tool registered under name.
func Lookup(name string) (Tool, bool) {
	t, ok := registry[name]
	return t, ok
}

// All returns every registered tool sorted by name.
func All() []Tool {
	out := make([]Tool, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Run applies the named tool. A tool that leaves the source untouched yields
// an error matching ErrNoChange whose message says what was missing.
func Run(name, source string, params Params) (string, error) {
	t, ok := Lookup(name)
	if !ok {
		return source, apperrors.NewValidationError(apperrors.ErrCodeToolNotFound, "unknown tool: "+name)
	}

	out, err := t.Apply(source, params)
	if err != nil {
		return source, err
	}
	if out == source {
		return source, apperrors.NewValidationError(apperrors.ErrCodeNoChange, t.NoChange).
			WithContext("tool", name)
	}

	return out, nil
}
