// Package pdfextractor extracts page text from PDF files through the
// pdftotext command. Password handling distinguishes an encrypted file
// processed without credentials from a wrong password, because only the
// former is retriable.
package pdfextractor

import (
	"bytes"
	"os/exec"
	"strings"

	"soberana/docledger/internal/logging"
	"soberana/docledger/internal/parsererror"
)

// Extractor extracts text content from a PDF file. The interface exists so
// the pipeline can be tested without a poppler installation.
type Extractor interface {
	// ExtractText returns the concatenated page text of the PDF at path,
	// decrypting with password when one is given.
	ExtractText(path, password string) (string, error)
}

// PdftotextExtractor is the production Extractor backed by the pdftotext
// command from poppler-utils.
type PdftotextExtractor struct {
	// Binary is the pdftotext executable; plain "pdftotext" resolves
	// through PATH.
	Binary string
}

// NewPdftotextExtractor creates an Extractor invoking the given pdftotext
// binary. An empty binary defaults to "pdftotext".
func NewPdftotextExtractor(binary string) *PdftotextExtractor {
	if binary == "" {
		binary = "pdftotext"
	}
	return &PdftotextExtractor{Binary: binary}
}

// ExtractText runs pdftotext with layout preservation and returns the text.
// An encrypted PDF without a password yields PasswordRequiredError; a
// rejected password yields InvalidPasswordError; a PDF with no text layer
// (scanned image) yields DataExtractionError since no OCR fallback exists.
func (e *PdftotextExtractor) ExtractText(path, password string) (string, error) {
	args := []string{"-layout", "-enc", "UTF-8"}
	if password != "" {
		args = append(args, "-upw", password)
	}
	args = append(args, path, "-")

	cmd := exec.Command(e.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.ToLower(stderr.String())
		if strings.Contains(message, "password") || strings.Contains(message, "encrypted") {
			if password == "" {
				return "", &parsererror.PasswordRequiredError{FilePath: path}
			}
			return "", &parsererror.InvalidPasswordError{FilePath: path}
		}
		logging.GetLogger().WithError(err).Error("pdftotext failed",
			logging.Field{Key: "file", Value: path},
			logging.Field{Key: "stderr", Value: stderr.String()})
		return "", &parsererror.InvalidFormatError{
			FilePath:       path,
			ExpectedFormat: "PDF",
			Msg:            strings.TrimSpace(stderr.String()),
		}
	}

	text := stdout.String()
	if strings.TrimSpace(text) == "" {
		return "", &parsererror.DataExtractionError{
			FilePath:  path,
			FieldName: "text",
			Reason:    "PDF has no extractable text layer",
		}
	}
	return text, nil
}

// MockExtractor is an Extractor returning canned data for tests.
type MockExtractor struct {
	Text string
	Err  error
	// RequirePassword simulates an encrypted document: extraction fails
	// until Password is supplied.
	RequirePassword bool
	Password        string
}

// ExtractText returns the configured text or error, applying the simulated
// password rules first.
func (m *MockExtractor) ExtractText(path, password string) (string, error) {
	if m.RequirePassword {
		if password == "" {
			return "", &parsererror.PasswordRequiredError{FilePath: path}
		}
		if password != m.Password {
			return "", &parsererror.InvalidPasswordError{FilePath: path}
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}
