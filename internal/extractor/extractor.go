// Package extractor asks a vision model for structured recipe data from a
// rendered page image.
package extractor

import (
	"context"
	"encoding/json"
)

// Hints steer the vision model toward the document's locale conventions
// (ingredient names, units, temperature scales).
type Hints struct {
	Locale string
	Region string
}

// RecipeData is the structured payload extracted from one page. The recipe
// data model proper lives elsewhere; this package only carries the payload
// through to persistence.
type RecipeData struct {
	Title string
	Raw   json.RawMessage
}

// Extraction is the outcome of one page-extraction call. Found=false means
// the model saw no recipe on the page (covers, tables of contents); that is
// not an error.
type Extraction struct {
	Found  bool
	Recipe *RecipeData
}

// PageExtractor is the external vision-model collaborator.
type PageExtractor interface {
	// ExtractFromImage extracts structured recipe data from a page image.
	// Returns (found with data | not found | hard error).
	ExtractFromImage(ctx context.Context, image []byte, hints Hints) (*Extraction, error)

	// Name returns the extractor identifier.
	Name() string
}
