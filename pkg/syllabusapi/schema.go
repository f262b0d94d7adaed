package syllabusapi

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidStatusPayload indicates the status endpoint returned an unexpected document.
var ErrInvalidStatusPayload = errors.New("invalid status payload")

const statusSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["status"],
  "properties": {
    "id": {"type": "integer", "minimum": 0},
    "filename": {"type": ["string", "null"]},
    "status": {
      "type": "string",
      "anyOf": [
        {"enum": ["processing", "completed"]},
        {"pattern": "^failed"}
      ]
    },
    "course_name": {"type": ["string", "null"]},
    "instructor": {"type": ["string", "null"]},
    "assignment_count": {"type": ["integer", "null"], "minimum": 0}
  }
}`

var statusValidator = jsonschema.MustCompileString("status.schema.json", statusSchema)

func validateStatusPayload(raw []byte) error {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStatusPayload, err)
	}
	if err := statusValidator.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStatusPayload, err)
	}
	return nil
}
