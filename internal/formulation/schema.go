package formulation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Only structure is checked here. Numeric fields are normalized by the
// decoder, so the schema leaves them untyped.
const formulationSchema = `{
  "type": "object",
  "anyOf": [
    {"required": ["ingredients"]},
    {"required": ["formulation"]}
  ],
  "properties": {
    "formulation": {"$ref": "#/definitions/formulation"},
    "ingredients": {"$ref": "#/definitions/ingredients"}
  },
  "definitions": {
    "formulation": {
      "type": "object",
      "required": ["ingredients"],
      "properties": {"ingredients": {"$ref": "#/definitions/ingredients"}}
    },
    "ingredients": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "suppliers": {"type": "array", "items": {"type": "object"}}
        }
      }
    }
  }
}`

var compiledSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(formulationSchema))
	if err != nil {
		panic(fmt.Sprintf("formulation schema: %v", err))
	}
	compiledSchema = s
}

// ValidateDocument checks the structural shape of a generation response.
func ValidateDocument(raw []byte) error {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return &SchemaError{Violations: errs}
	}
	return nil
}

type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "formulation schema validation failed: " + strings.Join(e.Violations, "; ")
}
