package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError reports that an arguments object did not satisfy an
// operation's declared schema. Validation here is shallow gatekeeping;
// the remote executor remains the authority on argument semantics.
type ValidationError struct {
	Operation string
	Details   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("arguments for %q failed validation: %s", e.Operation, e.Details)
}

// ValidateArgs checks an arguments object against the operation's schema.
// Operations without a schema accept anything. Empty args are validated as
// an empty object so required-field violations still surface.
func ValidateArgs(def *Definition, args json.RawMessage) error {
	if def.Schema == nil {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	schemaBytes, err := json.Marshal(def.Schema)
	if err != nil {
		return &ValidationError{
			Operation: def.Name,
			Details:   fmt.Sprintf("schema not marshalable: %v", err),
		}
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	documentLoader := gojsonschema.NewBytesLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &ValidationError{
			Operation: def.Name,
			Details:   fmt.Sprintf("validation failed to run: %v", err),
		}
	}

	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return &ValidationError{
			Operation: def.Name,
			Details:   strings.Join(details, "; "),
		}
	}

	return nil
}
