package types

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownLanguage is returned when no registered language matches a name or path.
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrNoLanguage is returned when a parser is used before a language is set.
	ErrNoLanguage = errors.New("no language set")

	// ErrIncompatibleLanguage is returned when a language table version is not supported.
	ErrIncompatibleLanguage = errors.New("incompatible language version")

	// ErrInvalidTable is returned when a language table is internally inconsistent.
	ErrInvalidTable = errors.New("invalid language table")

	// ErrInvalidGrammar is returned when a grammar definition is malformed.
	ErrInvalidGrammar = errors.New("invalid grammar")

	// ErrUndefinedSymbol is returned when a grammar references a rule that does not exist.
	ErrUndefinedSymbol = errors.New("undefined symbol")

	// ErrConflict is returned when a grammar has an unresolved LR conflict.
	ErrConflict = errors.New("unresolved conflict")

	// ErrInvalidEdit is returned when an edit range lies outside the document.
	ErrInvalidEdit = errors.New("invalid edit")

	// ErrStoreFailed is returned when store operation fails.
	ErrStoreFailed = errors.New("store operation failed")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled is returned when an operation is cancelled.
	ErrCancelled = errors.New("operation cancelled")
)
