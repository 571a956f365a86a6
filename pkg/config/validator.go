package config

import (
	"fmt"
	"reflect"
	"strings"
)

// Validator validates configuration
type Validator interface {
	Validate(config interface{}) error
}

// ValidatorFunc is a function that validates configuration
type ValidatorFunc func(config interface{}) error

func (f ValidatorFunc) Validate(config interface{}) error {
	return f(config)
}

// Validate runs the given validators against the configuration
func Validate(config interface{}, validators ...Validator) error {
	for _, validator := range validators {
		if err := validator.Validate(config); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// RequiredFields validates that the named fields are not zero-valued.
// Nested fields use dotted paths, e.g. "Engine.LogLevel".
func RequiredFields(fields ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		val := reflect.ValueOf(config)
		if val.Kind() == reflect.Ptr {
			val = val.Elem()
		}
		if val.Kind() != reflect.Struct {
			return fmt.Errorf("config must be a struct")
		}

		var missing []string
		for _, fieldName := range fields {
			fieldVal := getNestedField(val, fieldName)
			if !fieldVal.IsValid() {
				return fmt.Errorf("field %s not found in config struct", fieldName)
			}
			if fieldVal.IsZero() {
				missing = append(missing, fieldName)
			}
		}

		if len(missing) > 0 {
			return fmt.Errorf("required fields are missing: %s", strings.Join(missing, ", "))
		}
		return nil
	})
}

// OneOf validates that a string field holds one of the allowed values.
// An empty field is accepted; combine with RequiredFields to forbid it.
func OneOf(field string, allowed ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		val := reflect.ValueOf(config)
		if val.Kind() == reflect.Ptr {
			val = val.Elem()
		}

		fieldVal := getNestedField(val, field)
		if !fieldVal.IsValid() {
			return fmt.Errorf("field %s not found in config struct", field)
		}
		if fieldVal.Kind() != reflect.String {
			return fmt.Errorf("field %s is not a string", field)
		}

		got := fieldVal.String()
		if got == "" {
			return nil
		}
		for _, a := range allowed {
			if got == a {
				return nil
			}
		}
		return fmt.Errorf("field %s must be one of %s, got %q",
			field, strings.Join(allowed, ", "), got)
	})
}

// getNestedField resolves a dotted field path on a struct value.
func getNestedField(val reflect.Value, path string) reflect.Value {
	parts := strings.Split(path, ".")
	for _, part := range parts {
		if val.Kind() == reflect.Ptr {
			if val.IsNil() {
				return reflect.Value{}
			}
			val = val.Elem()
		}
		if val.Kind() != reflect.Struct {
			return reflect.Value{}
		}
		val = val.FieldByName(part)
		if !val.IsValid() {
			return reflect.Value{}
		}
	}
	return val
}
