package dataset

import (
	"fmt"
	"strings"
)

const (
	FieldInput   = "input"
	FieldOutput  = "output"
	FieldContext = "context"
)

var (
	defaultInputAliases   = []string{"input", "question", "q", "prompt"}
	defaultOutputAliases  = []string{"output", "answer", "a", "completion"}
	defaultContextAliases = []string{"context"}
)

// Schema declares which JSON keys carry each record field. The first alias
// present on a line wins.
type Schema struct {
	InputFields    []string `yaml:"input_fields"`
	OutputFields   []string `yaml:"output_fields"`
	ContextFields  []string `yaml:"context_fields"`
	MetadataField  string   `yaml:"metadata_field"`
	OutputOptional bool     `yaml:"output_optional"`
	// IdentityFields restricts which fields feed the content hash.
	IdentityFields []string `yaml:"identity_fields"`
}

func DefaultSchema() Schema {
	schema := Schema{}
	schema.ApplyDefaults()
	return schema
}

func (schema *Schema) ApplyDefaults() {
	if len(schema.InputFields) == 0 {
		schema.InputFields = append([]string(nil), defaultInputAliases...)
	}
	if len(schema.OutputFields) == 0 {
		schema.OutputFields = append([]string(nil), defaultOutputAliases...)
	}
	if len(schema.ContextFields) == 0 {
		schema.ContextFields = append([]string(nil), defaultContextAliases...)
	}
	if strings.TrimSpace(schema.MetadataField) == "" {
		schema.MetadataField = "metadata"
	}
	if len(schema.IdentityFields) == 0 {
		schema.IdentityFields = []string{FieldInput, FieldContext, FieldOutput}
	}
}

func (schema Schema) Validate() error {
	if len(schema.InputFields) == 0 {
		return fmt.Errorf("schema: at least one input field is required")
	}
	if len(schema.OutputFields) == 0 && !schema.OutputOptional {
		return fmt.Errorf("schema: at least one output field is required")
	}
	for _, field := range schema.IdentityFields {
		switch field {
		case FieldInput, FieldOutput, FieldContext:
		default:
			return fmt.Errorf("schema: invalid identity field %q (expected input|output|context)", field)
		}
	}
	return nil
}
