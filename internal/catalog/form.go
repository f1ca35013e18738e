// ABOUTME: Generic edit form driven by a kind's schema
// ABOUTME: Holds raw string input and coerces it back into a typed record

package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// ErrUnknownField is returned when a form is asked about a field outside its schema.
var ErrUnknownField = errors.New("unknown field")

// FieldError describes one field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError collects every field error found by Form.Record.
type ValidationError struct {
	Kind   Kind
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("invalid %s: %s", e.Kind, strings.Join(parts, "; "))
}

// Form is the editable state of one record. It is not safe for concurrent use.
type Form struct {
	schema Schema
	id     *int64
	values map[string]string
}

// NewForm seeds a form from rec. The record's identifier is carried through
// unchanged, so a form opened from a persisted record saves as an update.
func NewForm(rec Record) *Form {
	schema := MustSchema(rec.Kind())
	f := &Form{
		schema: schema,
		values: make(map[string]string, len(schema.Fields)),
	}
	if id, ok := rec.Identifier(); ok {
		f.id = &id
	}
	vals := rec.Values()
	for _, field := range schema.Fields {
		f.values[field.Name] = formatValue(vals[field.Name])
	}
	return f
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Kind returns the form's resource kind.
func (f *Form) Kind() Kind { return f.schema.Kind }

// Schema returns the schema driving the form.
func (f *Form) Schema() Schema { return f.schema }

// Editing reports whether the form edits a persisted record.
func (f *Form) Editing() bool { return f.id != nil }

// Get returns the raw value of a field.
func (f *Form) Get(name string) (string, error) {
	if _, ok := f.schema.Field(name); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return f.values[name], nil
}

// Set replaces the raw value of a field. Validation is deferred to Record.
func (f *Form) Set(name, value string) error {
	if _, ok := f.schema.Field(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	f.values[name] = value
	return nil
}

// Fields returns the raw values in schema order.
func (f *Form) Fields() []FieldValue {
	out := make([]FieldValue, len(f.schema.Fields))
	for i, field := range f.schema.Fields {
		out[i] = FieldValue{Field: field, Value: f.values[field.Name]}
	}
	return out
}

// FieldValue pairs a schema field with its current raw value.
type FieldValue struct {
	Field Field
	Value string
}

// Record validates the form and coerces it into a typed record.
func (f *Form) Record() (Record, error) {
	values := make(map[string]any, len(f.schema.Fields))
	var errs []FieldError

	for _, field := range f.schema.Fields {
		raw := strings.TrimSpace(f.values[field.Name])
		if field.Required && raw == "" {
			errs = append(errs, FieldError{Field: field.Name, Message: "is required"})
			continue
		}
		v, err := coerce(field, raw)
		if err != nil {
			errs = append(errs, FieldError{Field: field.Name, Message: err.Error()})
			continue
		}
		values[field.Name] = v
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Kind: f.schema.Kind, Fields: errs}
	}
	return FromValues(f.schema.Kind, f.id, values)
}

func coerce(field Field, raw string) (any, error) {
	switch field.Coercion {
	case CoerceInt:
		if raw == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a whole number", raw)
		}
		return n, nil
	case CoerceFloatOrNull:
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || !finite(v) {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return v, nil
	}

	switch field.Input {
	case InputSelect:
		if raw != "" && !slices.Contains(field.Options, raw) {
			return nil, fmt.Errorf("must be one of %s", strings.Join(field.Options, ", "))
		}
	case InputURL:
		if raw != "" {
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, fmt.Errorf("%q is not an http(s) URL", raw)
			}
		}
	}
	return raw, nil
}
