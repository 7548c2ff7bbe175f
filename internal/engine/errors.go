package engine

import (
	"context"
	"errors"

	"github.com/ThakiCloud/vllm-eval/internal/dataset"
	"github.com/ThakiCloud/vllm-eval/internal/dedup"
	"github.com/ThakiCloud/vllm-eval/internal/manifest"
)

// ErrorType maps a run error onto the label used in run summaries and exit
// reporting.
func ErrorType(err error) string {
	var schemaError *dataset.SchemaError
	var encodingError *dataset.EncodingError
	var exhaustionError *dedup.ResourceExhaustionError
	var conflictError *manifest.ManifestConflictError
	var orderError *manifest.VersionOrderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &schemaError):
		return "schema"
	case errors.As(err, &encodingError):
		return "encoding"
	case errors.As(err, &exhaustionError):
		return "resource"
	case errors.As(err, &conflictError):
		return "conflict"
	case errors.As(err, &orderError):
		return "version"
	default:
		return "internal"
	}
}
