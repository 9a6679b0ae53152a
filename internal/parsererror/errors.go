// Package parsererror defines the typed errors surfaced by the extraction
// and ingestion pipeline. Callers branch on these types to distinguish
// rejections that need different user input from plain failures.
package parsererror

import (
	"fmt"

	"github.com/google/uuid"
)

// ParseError represents a failure while parsing a specific field.
type ParseError struct {
	Parser string
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse %s='%s': %v",
		e.Parser, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InvalidFormatError represents input that does not conform to the format a
// specific extractor expects.
type InvalidFormatError struct {
	FilePath       string
	ExpectedFormat string
	Msg            string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid format in file '%s': %s. Expected: %s",
		e.FilePath, e.Msg, e.ExpectedFormat)
}

// DataExtractionError represents a structurally valid file from which a
// required field could not be extracted.
type DataExtractionError struct {
	FilePath  string
	FieldName string
	Reason    string
}

func (e *DataExtractionError) Error() string {
	return fmt.Sprintf("data extraction failed in file '%s' for field '%s': %s",
		e.FilePath, e.FieldName, e.Reason)
}

// PasswordRequiredError signals an encrypted PDF processed without a
// password. It is retriable once the caller obtains credentials.
type PasswordRequiredError struct {
	FilePath string
}

func (e *PasswordRequiredError) Error() string {
	return "PASSWORD_REQUIRED"
}

// InvalidPasswordError signals that the supplied password did not decrypt
// the PDF. Retrying with the same password cannot succeed.
type InvalidPasswordError struct {
	FilePath string
}

func (e *InvalidPasswordError) Error() string {
	return fmt.Sprintf("invalid password for file '%s'", e.FilePath)
}

// DuplicateDocumentError rejects an upload whose content hash already exists
// for the tenant. ExistingID references the document previously ingested.
type DuplicateDocumentError struct {
	TenantID   uuid.UUID
	ExistingID uuid.UUID
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("duplicate document: content already ingested as %s", e.ExistingID)
}

// UnsupportedLayoutError signals that no deterministic parser recognized the
// document text.
type UnsupportedLayoutError struct {
	Snippet string
}

func (e *UnsupportedLayoutError) Error() string {
	return fmt.Sprintf("unsupported document layout. Content: %.50s...", e.Snippet)
}
