package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so errors line up with payload keys
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Numeric tags (gte, gt) compare decimals through their float value
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		p := sl.Current().Interface().(Plan)
		if p.StartDate != "" && p.EndDate != "" && p.EndDate < p.StartDate {
			sl.ReportError(p.EndDate, "end_date", "EndDate", "gtefield", "start_date")
		}
	}, Plan{})

	return v
}

// ValidationError reports a payload that failed validation before persistence.
type ValidationError struct {
	Collection Collection
	Fields     map[string]string // field -> failed rule
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return fmt.Sprintf("invalid %s: %s", e.Collection.Singular(), strings.Join(parts, ", "))
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks a typed payload against its validation rules.
func Validate(c Collection, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %s: %w", c.Singular(), err)
	}
	ve := &ValidationError{Collection: c, Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		// Namespace is "Plan.itinerary[0].day"; drop the struct name
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		ve.Fields[field] = fe.Tag()
	}
	return ve
}

// ValidatePayload decodes a raw payload into the typed struct of the
// collection and validates it. Unknown fields are rejected.
func ValidatePayload(c Collection, payload json.RawMessage) error {
	switch c {
	case CollectionPlans:
		_, err := Decode[Plan](c, payload)
		return err
	case CollectionBudgets:
		_, err := Decode[Budget](c, payload)
		return err
	case CollectionExpenses:
		_, err := Decode[Expense](c, payload)
		return err
	}
	return fmt.Errorf("unknown collection %q", c)
}

// Decode strictly decodes and validates a payload of collection c into T.
func Decode[T any](c Collection, payload json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(payload)) == 0 {
		return v, &ValidationError{Collection: c, Fields: map[string]string{"payload": "required"}}
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, &ValidationError{Collection: c, Fields: map[string]string{"payload": "malformed"}}
	}
	if err := Validate(c, v); err != nil {
		return v, err
	}
	return v, nil
}

// Encode validates v and marshals it into a payload.
func Encode(c Collection, v any) (json.RawMessage, error) {
	if err := Validate(c, v); err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", c.Singular(), err)
	}
	return data, nil
}

// MergePatch overlays the top-level keys of patch onto base. A null value
// in the patch removes the key.
func MergePatch(base, patch json.RawMessage) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(base)) > 0 {
		if err := json.Unmarshal(base, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal base: %w", err)
		}
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, fmt.Errorf("unmarshal patch: %w", err)
	}
	for k, v := range overlay {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}
	return json.Marshal(fields)
}

// Normalize validates a payload and returns its canonical encoding.
func Normalize(c Collection, payload json.RawMessage) (json.RawMessage, error) {
	switch c {
	case CollectionPlans:
		return normalize[Plan](c, payload)
	case CollectionBudgets:
		return normalize[Budget](c, payload)
	case CollectionExpenses:
		return normalize[Expense](c, payload)
	}
	return nil, fmt.Errorf("unknown collection %q", c)
}

func normalize[T any](c Collection, payload json.RawMessage) (json.RawMessage, error) {
	v, err := Decode[T](c, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", c.Singular(), err)
	}
	return data, nil
}
