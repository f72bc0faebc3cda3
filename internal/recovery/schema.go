package recovery

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/legaldb/caseanalyzer/internal/core"
)

const snapshotSchemaURL = "https://legaldb.dev/schemas/analyzer-snapshot.json"

// snapshotSchemaJSON describes StoredAnalyzerSnapshot. A snapshot must
// carry at least one of its three payload sections.
const snapshotSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "correlationId": {"type": "string"},
    "draftId": {"type": "integer", "minimum": 0},
    "jurisdiction": {
      "type": ["object", "null"],
      "properties": {
        "legal_system_type": {"type": "string"},
        "precise_jurisdiction": {"type": "string"},
        "jurisdiction_code": {"type": "string"},
        "confidence": {"type": "string"},
        "reasoning": {"type": "string"}
      }
    },
    "analysisResults": {
      "type": ["object", "null"],
      "additionalProperties": {"type": ["object", "null"]}
    },
    "editedFields": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "string"}
    }
  },
  "anyOf": [
    {"required": ["editedFields"]},
    {"required": ["analysisResults"]},
    {"required": ["jurisdiction"]}
  ]
}`

var (
	schemaOnce sync.Once
	schemaErr  error
	compiled   *jsonschema.Schema
)

// snapshotSchema compiles the snapshot schema once per process.
func snapshotSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(snapshotSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("unmarshal snapshot schema: %w", err)
			return
		}
		if err := c.AddResource(snapshotSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add snapshot schema resource: %w", err)
			return
		}
		compiled, schemaErr = c.Compile(snapshotSchemaURL)
	})
	return compiled, schemaErr
}

// ValidateSnapshot checks a decoded candidate against the snapshot schema.
func ValidateSnapshot(candidate map[string]any) error {
	sch, err := snapshotSchema()
	if err != nil {
		return core.ErrValidation(core.CodeInvalidSnapshot, "snapshot schema unavailable").WithCause(err)
	}
	doc, err := toJSONValue(candidate)
	if err != nil {
		return core.ErrValidation(core.CodeInvalidSnapshot, "failed to serialize snapshot").WithCause(err)
	}
	if err := sch.Validate(doc); err != nil {
		return toSnapshotError(err)
	}
	return nil
}

// toJSONValue round-trips v so numbers become json.Number, which the
// validator requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

func toSnapshotError(err error) *core.DomainError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return core.ErrValidation(core.CodeInvalidSnapshot, err.Error())
	}
	violations := collectViolations(verr)
	msg := verr.Error()
	if len(violations) == 1 {
		msg = violations[0]
	} else if len(violations) > 1 {
		msg = fmt.Sprintf("snapshot failed %d checks", len(violations))
	}
	return core.ErrValidation(core.CodeInvalidSnapshot, msg).WithDetail("violations", violations)
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var out []string
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
