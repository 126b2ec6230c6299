package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extractionSchema is the structured-output contract sent to the model and
// used to validate what comes back before it is accepted.
const extractionSchema = `{
  "type": "object",
  "properties": {
    "found": {
      "type": "boolean",
      "description": "Whether the page contains a recipe"
    },
    "title": {
      "type": "string",
      "description": "The recipe title, empty when no recipe was found"
    },
    "ingredients": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "quantity": {"type": "string"},
          "unit": {"type": "string"}
        },
        "required": ["name"],
        "additionalProperties": false
      }
    },
    "steps": {
      "type": "array",
      "items": {"type": "string"}
    },
    "servings": {"type": "string"},
    "total_time": {"type": "string"}
  },
  "required": ["found", "title"],
  "additionalProperties": false
}`

var compiledSchema = jsonschema.MustCompileString("extraction.json", extractionSchema)

// extractionResult is the subset of the model payload this package inspects.
type extractionResult struct {
	Found bool   `json:"found"`
	Title string `json:"title"`
}

// parseModelOutput validates raw model output against the extraction schema
// and converts it into an Extraction.
func parseModelOutput(raw []byte) (*Extraction, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("model output failed schema validation: %w", err)
	}

	var result extractionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode model output: %w", err)
	}

	if !result.Found {
		return &Extraction{Found: false}, nil
	}

	title := strings.TrimSpace(result.Title)
	if title == "" {
		// A recipe without a title is not usable; treat as not found rather
		// than persisting an unnameable record.
		return &Extraction{Found: false}, nil
	}

	return &Extraction{
		Found: true,
		Recipe: &RecipeData{
			Title: title,
			Raw:   json.RawMessage(raw),
		},
	}, nil
}
