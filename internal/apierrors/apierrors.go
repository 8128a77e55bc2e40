// Package apierrors is the shared error taxonomy named in SPEC_FULL.md §7:
// abstract kinds rather than one type per component, so every surface
// (scheduler, downloader, indexer, request handlers) can agree on how a
// failure maps to a retry decision or an HTTP status without importing each
// other's error types.
package apierrors

import "fmt"

type Kind string

const (
	KindConfiguration Kind = "ConfigurationError"
	KindProvider      Kind = "ProviderError"
	KindIndexer       Kind = "IndexerError"
	KindDownloader    Kind = "DownloaderError"
	KindNotFound      Kind = "NotFound"
	KindStateConflict Kind = "StateConflict"
	KindValidation    Kind = "ValidationError"
)

// Error is the common envelope every request-surface handler checks with
// errors.As before falling back to a generic 500.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) *Error           { return &Error{Kind: KindNotFound, Msg: msg} }
func Validation(msg string) *Error         { return &Error{Kind: KindValidation, Msg: msg} }
func StateConflict(msg string) *Error      { return &Error{Kind: KindStateConflict, Msg: msg} }
func Configuration(msg string) *Error      { return &Error{Kind: KindConfiguration, Msg: msg} }
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
