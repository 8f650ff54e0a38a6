package stream

import (
	"strings"

	apperrors "github.com/conneroisu/storefront/internal/errors"
)

// Request is the body of a generation request.
type Request struct {
	Prompt            string           `json:"prompt"`
	FullCode          string           `json:"fullCode"`
	VendorID          string           `json:"vendorId"`
	VendorName        string           `json:"vendorName"`
	Industry          string           `json:"industry,omitempty"`
	IsEditingExisting bool             `json:"isEditingExisting"`
	ConversationID    string           `json:"conversationId,omitempty"`
	References        ReferenceWeights `json:"references,omitempty"`
}

// MinExistingLength is the source length from which a document counts as
// substantial.
const MinExistingLength = 200

var (
	placeholderMarkers = []string{
		"lorem ipsum",
		"your store",
		"coming soon",
		"{{",
	}
	editVerbs = map[string]bool{
		"optimize": true,
		"improve":  true,
		"add":      true,
		"change":   true,
		"update":   true,
		"make":     true,
		"better":   true,
	}
)

// IsEditingExisting reports whether prompt asks to edit source rather than
// start over: the source must look substantial and free of placeholder
// markers, and the prompt must contain an edit verb as a whole word.
func IsEditingExisting(source, prompt string) bool {
	if len(strings.TrimSpace(source)) <= MinExistingLength {
		return false
	}

	lower := strings.ToLower(source)
	for _, m := range placeholderMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}

	for _, word := range strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if editVerbs[word] {
			return true
		}
	}

	return false
}

// ReferenceWeight weights one reference image in [0, 100].
type ReferenceWeight struct {
	FileID string `json:"fileId"`
	Weight int    `json:"weight"`
}

// ReferenceWeights is a set of weighted references. Weights are used as given
// and need not sum to 100.
type ReferenceWeights []ReferenceWeight

// Validate checks bounds and identifiers.
func (w ReferenceWeights) Validate() error {
	seen := make(map[string]bool, len(w))
	for _, r := range w {
		if strings.TrimSpace(r.FileID) == "" {
			return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "reference without file id")
		}
		if r.Weight < 0 || r.Weight > 100 {
			return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "reference weight out of range").
				WithContext("fileId", r.FileID).
				WithContext("weight", r.Weight)
		}
		if seen[r.FileID] {
			return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "duplicate reference").
				WithContext("fileId", r.FileID)
		}
		seen[r.FileID] = true
	}

	return nil
}

// ShouldAnalyze reports whether any reference carries weight.
func (w ReferenceWeights) ShouldAnalyze() bool {
	for _, r := range w {
		if r.Weight > 0 {
			return true
		}
	}

	return false
}

// Total returns the sum of all weights.
func (w ReferenceWeights) Total() int {
	total := 0
	for _, r := range w {
		total += r.Weight
	}

	return total
}
