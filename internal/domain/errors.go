package domain

import "errors"

var (
	// ErrInvalidForest is returned for forest names that cannot map to a file
	// in the data directory (empty, or containing path elements).
	ErrInvalidForest = errors.New("invalid forest name")

	// ErrDatasetNotFound means no preprocessed table exists for the forest.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrModelNotFound means the requested model variant has no artifact.
	// There is no fallback to the other variant.
	ErrModelNotFound = errors.New("model not found")

	// ErrSchemaMismatch means a feature record does not line up with the
	// model's expected columns. It points at an upstream data inconsistency.
	ErrSchemaMismatch = errors.New("feature schema mismatch")

	// ErrInvalidInput is returned for form values that are unparsable or
	// outside the control's range.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedDataset is returned when a table cannot be parsed.
	ErrMalformedDataset = errors.New("malformed dataset")
)
