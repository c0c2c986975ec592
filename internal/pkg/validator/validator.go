package validator

// Validator validates structs annotated with `validate` tags.
type Validator interface {
	// Validate returns nil when data satisfies every rule, or a field-to-message
	// error describing each violation.
	Validate(data any) error
}
