package dataset

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const maxLineBytes = 16 << 20

// RawLine is one non-blank line of an input file, before decoding.
type RawLine struct {
	Path  string
	Line  int
	Bytes []byte
}

// Loader streams line-delimited JSON files in the given order. It holds no
// cursor state, so every call to Lines or Each starts from the first file.
type Loader struct {
	Paths   []string
	Decoder Decoder
}

func NewLoader(paths []string, schema Schema, normalizer Normalizer) *Loader {
	schema.ApplyDefaults()
	return &Loader{
		Paths:   append([]string(nil), paths...),
		Decoder: Decoder{Schema: schema, Normalizer: normalizer},
	}
}

func (loader *Loader) Lines(ctx context.Context, visit func(RawLine) error) error {
	for _, path := range loader.Paths {
		if err := scanFile(ctx, path, visit); err != nil {
			return err
		}
	}
	return nil
}

// Each decodes every line in order and hands the record to visit. The first
// malformed line stops the walk.
func (loader *Loader) Each(ctx context.Context, visit func(Record) error) error {
	index := 0
	return loader.Lines(ctx, func(line RawLine) error {
		record, decodeError := loader.Decoder.Decode(line, index)
		if decodeError != nil {
			return decodeError
		}
		index++
		return visit(record)
	})
}

func (loader *Loader) LoadAll(ctx context.Context) ([]Record, error) {
	records := make([]Record, 0, 1024)
	err := loader.Each(ctx, func(record Record) error {
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func scanFile(ctx context.Context, path string, visit func(RawLine) error) error {
	file, openError := os.Open(path)
	if openError != nil {
		return fmt.Errorf("open dataset %s: %w", path, openError)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		if lineNumber%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		raw := RawLine{Path: path, Line: lineNumber, Bytes: append([]byte(nil), line...)}
		if visitError := visit(raw); visitError != nil {
			return visitError
		}
	}
	if scanError := scanner.Err(); scanError != nil {
		if errors.Is(scanError, bufio.ErrTooLong) {
			return &EncodingError{Path: path, Line: lineNumber + 1, Reason: fmt.Sprintf("line exceeds %d bytes", maxLineBytes)}
		}
		return fmt.Errorf("scan dataset %s: %w", path, scanError)
	}
	return ctx.Err()
}

// Decoder validates and normalizes raw lines. It is safe for concurrent use.
type Decoder struct {
	Schema     Schema
	Normalizer Normalizer
}

func (decoder Decoder) Decode(line RawLine, index int) (Record, error) {
	if !utf8.Valid(line.Bytes) {
		return Record{}, &EncodingError{Path: line.Path, Line: line.Line, Reason: "invalid UTF-8"}
	}
	if !gjson.ValidBytes(line.Bytes) {
		return Record{}, &EncodingError{Path: line.Path, Line: line.Line, Reason: "invalid JSON"}
	}
	document := gjson.ParseBytes(line.Bytes)
	if !document.IsObject() {
		return Record{}, &SchemaError{Path: line.Path, Line: line.Line, Field: "", Reason: "line is not a JSON object"}
	}

	input, found, err := lookupString(document, decoder.Schema.InputFields, line)
	if err != nil {
		return Record{}, err
	}
	if !found {
		return Record{}, &SchemaError{Path: line.Path, Line: line.Line, Field: FieldInput, Reason: "is required"}
	}
	output, found, err := lookupString(document, decoder.Schema.OutputFields, line)
	if err != nil {
		return Record{}, err
	}
	if !found && !decoder.Schema.OutputOptional {
		return Record{}, &SchemaError{Path: line.Path, Line: line.Line, Field: FieldOutput, Reason: "is required"}
	}
	contextText, _, err := lookupString(document, decoder.Schema.ContextFields, line)
	if err != nil {
		return Record{}, err
	}
	metadata, err := lookupMetadata(document, decoder.Schema.MetadataField, line)
	if err != nil {
		return Record{}, err
	}

	record := Record{
		Index:    index,
		Path:     line.Path,
		Line:     line.Line,
		Input:    decoder.Normalizer.Normalize(input),
		Output:   decoder.Normalizer.Normalize(output),
		Context:  decoder.Normalizer.Normalize(contextText),
		Metadata: metadata,
		Raw:      line.Bytes,
	}
	record.identity = buildIdentity(decoder.Schema.IdentityFields, record.Input, record.Context, record.Output)
	record.hash = hashIdentity(record.identity)
	return record, nil
}

func lookupString(document gjson.Result, aliases []string, line RawLine) (string, bool, error) {
	for _, alias := range aliases {
		value := document.Get(gjson.Escape(alias))
		if !value.Exists() {
			continue
		}
		if value.Type != gjson.String {
			return "", false, &SchemaError{Path: line.Path, Line: line.Line, Field: alias, Reason: "must be a string"}
		}
		return value.Str, true, nil
	}
	return "", false, nil
}

func lookupMetadata(document gjson.Result, field string, line RawLine) (map[string]string, error) {
	if field == "" {
		return nil, nil
	}
	value := document.Get(gjson.Escape(field))
	if !value.Exists() || value.Type == gjson.Null {
		return nil, nil
	}
	if !value.IsObject() {
		return nil, &SchemaError{Path: line.Path, Line: line.Line, Field: field, Reason: "must be an object"}
	}
	metadata := map[string]string{}
	value.ForEach(func(key gjson.Result, item gjson.Result) bool {
		metadata[key.String()] = item.String()
		return true
	})
	return metadata, nil
}
