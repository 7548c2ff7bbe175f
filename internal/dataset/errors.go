package dataset

import "fmt"

// SchemaError reports a line whose required fields are absent or mistyped.
type SchemaError struct {
	Path   string
	Line   int
	Field  string
	Reason string
}

func (err *SchemaError) Error() string {
	return fmt.Sprintf("schema error at %s:%d: field %q %s", err.Path, err.Line, err.Field, err.Reason)
}

// EncodingError reports a line that is not valid UTF-8 or not valid JSON.
type EncodingError struct {
	Path   string
	Line   int
	Reason string
}

func (err *EncodingError) Error() string {
	return fmt.Sprintf("encoding error at %s:%d: %s", err.Path, err.Line, err.Reason)
}
