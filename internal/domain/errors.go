// Package domain defines core types, interfaces, and errors for the loader.
package domain

import "fmt"

// AuthFailureError indicates the identity service was unreachable or returned
// a malformed credential payload. Fatal once retries are exhausted.
type AuthFailureError struct {
	Message string
}

func (e *AuthFailureError) Error() string { return e.Message }

// CatalogUnavailableError indicates the table catalog could not be queried.
// Fatal for the run: no files can be routed without it.
type CatalogUnavailableError struct {
	Message string
}

func (e *CatalogUnavailableError) Error() string { return e.Message }

// TableDescribeError indicates a single table's location could not be
// resolved. Non-fatal: the table is skipped, the run continues.
type TableDescribeError struct {
	Table   string
	Message string
}

func (e *TableDescribeError) Error() string { return e.Message }

// StorageListError indicates the landing prefix could not be listed.
// Fatal for the run.
type StorageListError struct {
	Message string
}

func (e *StorageListError) Error() string { return e.Message }

// IngestionCommitError indicates a read, transform, or commit failure for one
// file. Non-fatal: the file is skipped and remains in the landing area.
type IngestionCommitError struct {
	File    string
	Message string
}

func (e *IngestionCommitError) Error() string { return e.Message }

// ArchiveFailedError indicates a relocation failure after a successful
// commit. Non-fatal: the file stays ingested but unarchived.
type ArchiveFailedError struct {
	File    string
	Message string
}

func (e *ArchiveFailedError) Error() string { return e.Message }

// ValidationError indicates invalid input or configuration.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrAuthFailure creates an AuthFailureError with a formatted message.
func ErrAuthFailure(format string, args ...interface{}) *AuthFailureError {
	return &AuthFailureError{Message: fmt.Sprintf(format, args...)}
}

// ErrCatalogUnavailable creates a CatalogUnavailableError with a formatted message.
func ErrCatalogUnavailable(format string, args ...interface{}) *CatalogUnavailableError {
	return &CatalogUnavailableError{Message: fmt.Sprintf(format, args...)}
}

// ErrTableDescribe creates a TableDescribeError for the given table.
func ErrTableDescribe(table, format string, args ...interface{}) *TableDescribeError {
	return &TableDescribeError{Table: table, Message: fmt.Sprintf(format, args...)}
}

// ErrStorageList creates a StorageListError with a formatted message.
func ErrStorageList(format string, args ...interface{}) *StorageListError {
	return &StorageListError{Message: fmt.Sprintf(format, args...)}
}

// ErrIngestionCommit creates an IngestionCommitError for the given file.
func ErrIngestionCommit(file, format string, args ...interface{}) *IngestionCommitError {
	return &IngestionCommitError{File: file, Message: fmt.Sprintf(format, args...)}
}

// ErrArchiveFailed creates an ArchiveFailedError for the given file.
func ErrArchiveFailed(file, format string, args ...interface{}) *ArchiveFailedError {
	return &ArchiveFailedError{File: file, Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
