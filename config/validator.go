package config

import (
	stderrors "errors"
	"sync"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/schema"
)

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// schemaValidator compiles the generated schema once per process.
func schemaValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		var data []byte
		data, validatorErr = GenerateSchema()
		if validatorErr != nil {
			return
		}
		validator, validatorErr = schema.NewValidator(data)
	})
	return validator, validatorErr
}

// ValidateDocument checks a decoded, untyped configuration document against
// the generated schema. Violations are reported as CONFIG_VALIDATION errors
// carrying the individual issues under the "issues" detail.
func ValidateDocument(doc interface{}) error {
	v, err := schemaValidator()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to compile configuration schema")
	}
	err = v.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *schema.ValidationError
	if !stderrors.As(err, &verr) {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
	}
	return errors.New(errors.ErrCodeConfigValidation, verr.Error()).WithDetail("issues", verr.Issues)
}
