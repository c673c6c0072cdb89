package apperrors

import "errors"

var (
	// ErrMetadataUnavailable indicates the backing catalog could not be
	// queried. Recoverable: callers fall back to a caller-supplied column list.
	ErrMetadataUnavailable = errors.New("metadata unavailable")

	// ErrNoCommonKey indicates key inference found no columns shared by all
	// schemas. Fatal for that comparison; the run continues for others.
	ErrNoCommonKey = errors.New("no common key column across datasets")

	// ErrKeyColumnNotFound indicates a declared or inferred key column is
	// absent from one of the relations being compared.
	ErrKeyColumnNotFound = errors.New("key column not found")

	// ErrEmptyKeySet indicates an explicitly supplied key list was empty.
	ErrEmptyKeySet = errors.New("empty key set")

	// ErrQueryExecution indicates an underlying scan or aggregate query
	// failed or timed out. Fatal for that statistic or comparison only.
	ErrQueryExecution = errors.New("query execution failed")

	// ErrTargetUnavailable indicates the target dataset itself could not be
	// resolved. Fatal for the entire reconciliation request.
	ErrTargetUnavailable = errors.New("target dataset unavailable")
)
