// Package schema compiles JSON Schema documents and checks decoded
// configuration against them.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const resourceName = "peersync.schema.json"

// Issue is one schema violation. Path is a JSON pointer into the document.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		lines = append(lines, fmt.Sprintf("- %s: %s", is.Path, is.Message))
	}
	return "schema validation failed:\n" + strings.Join(lines, "\n")
}

// Validator holds one compiled schema.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles the given schema document.
func NewValidator(schemaData []byte) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(resourceName, bytes.NewReader(schemaData)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks doc, which may be any value that marshals to JSON. Schema
// violations are returned as *ValidationError.
func (v *Validator) Validate(doc interface{}) error {
	// YAML decodes into types the validator doesn't understand, so the
	// document is normalised through encoding/json first.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document for validation: %w", err)
	}
	var normalised interface{}
	if err := json.Unmarshal(raw, &normalised); err != nil {
		return fmt.Errorf("failed to decode document for validation: %w", err)
	}

	err = v.compiled.Validate(normalised)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	var issues []Issue
	collectIssues(verr, &issues)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return &ValidationError{Issues: issues}
}

// collectIssues flattens the leaf causes of err.
func collectIssues(err *jsonschema.ValidationError, out *[]Issue) {
	if len(err.Causes) == 0 {
		path := err.InstanceLocation
		if path == "" {
			path = "/"
		}
		*out = append(*out, Issue{Path: path, Message: err.Message})
		return
	}
	for _, cause := range err.Causes {
		collectIssues(cause, out)
	}
}
