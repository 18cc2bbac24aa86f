package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "hub": {
      "type": "object",
      "properties": {"endpoint": {"type": "string"}},
      "additionalProperties": false
    }
  }
}`

func TestValidator(t *testing.T) {
	v, err := NewValidator([]byte(testSchema))
	require.NoError(t, err)

	assert.NoError(t, v.Validate(map[string]interface{}{
		"hub":     map[string]interface{}{"endpoint": "wss://hub.example.com"},
		"logging": map[string]interface{}{"level": "debug"},
	}))

	err = v.Validate(map[string]interface{}{
		"hub": map[string]interface{}{"endpoint": 42, "typo": true},
	})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Issues, 2)
	for _, is := range verr.Issues {
		assert.Contains(t, is.Path, "/hub")
		assert.NotEmpty(t, is.Message)
	}
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestValidatorRootIssue(t *testing.T) {
	v, err := NewValidator([]byte(testSchema))
	require.NoError(t, err)

	err = v.Validate([]string{"not", "an", "object"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, "/", verr.Issues[0].Path)
}

func TestNewValidatorRejectsBadSchema(t *testing.T) {
	_, err := NewValidator([]byte(`{"type": 12}`))
	assert.Error(t, err)
}
