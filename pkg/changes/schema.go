package changes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when a serialized change set does not match
// DocumentSchema.
var ErrInvalidDocument = errors.New("invalid changes document")

// DocumentSchema is the JSON Schema of a serialized Map: a flat object whose
// keys are non-empty paths and whose values are booleans.
const DocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "changes",
  "type": "object",
  "propertyNames": {"minLength": 1},
  "additionalProperties": {"type": "boolean"}
}`

var documentSchema = gojsonschema.NewStringLoader(DocumentSchema)

// ValidateDocument checks raw JSON against DocumentSchema.
func ValidateDocument(data []byte) error {
	result, err := gojsonschema.Validate(documentSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
}
