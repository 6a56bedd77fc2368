package rag

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. Every kind carries a stable internal
// code (returned to API clients) and a default user-facing message.
type Kind int

const (
	// KindUnknown is an unclassified failure.
	KindUnknown Kind = iota
	// KindValidation is a rejected input (empty message, bad chunk settings).
	KindValidation
	// KindUpstreamUnavailable means a backend could not be reached.
	KindUpstreamUnavailable
	// KindUpstreamTimeout means a backend did not answer in time.
	KindUpstreamTimeout
	// KindConfigConflict means an existing collection disagrees with the
	// requested dimension or metric.
	KindConfigConflict
	// KindPartialIngest means some chunks of a document were not written.
	KindPartialIngest
	// KindDimensionMismatch means a vector's length differs from the
	// collection dimension.
	KindDimensionMismatch
	// KindGenerationTimeout means the language model exceeded its deadline.
	KindGenerationTimeout
	// KindGenerationUpstream means the language model returned an error.
	KindGenerationUpstream
)

var kindInfo = map[Kind]struct {
	code    string
	message string
}{
	KindUnknown:             {"internal_error", "Something went wrong. Please try again."},
	KindValidation:          {"validation_error", "The request was not valid."},
	KindUpstreamUnavailable: {"upstream_unavailable", "A backend service is unavailable. Please try again shortly."},
	KindUpstreamTimeout:     {"upstream_timeout", "A backend service took too long to respond."},
	KindConfigConflict:      {"collection_config_conflict", "The vector collection exists with a different configuration."},
	KindPartialIngest:       {"partial_ingest_failure", "Some parts of the document could not be indexed."},
	KindDimensionMismatch:   {"embedding_dimension_mismatch", "The embedding model returned vectors of an unexpected size."},
	KindGenerationTimeout:   {"generation_timeout", "The model took too long to answer. Please try again."},
	KindGenerationUpstream:  {"generation_upstream_error", "Sorry, I could not generate a response right now."},
}

// Code returns the stable machine-readable code for k.
func (k Kind) Code() string {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return kindInfo[KindUnknown].code
}

// String implements fmt.Stringer.
func (k Kind) String() string { return k.Code() }

// Error is the typed failure returned by every pipeline component.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op names the operation that failed, e.g. "embedder.embed".
	Op string

	// Message is safe to show to end users. Empty means the kind's default.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is matching. Only Kind is compared.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrUpstreamTimeout     = &Error{Kind: KindUpstreamTimeout}
	ErrConfigConflict      = &Error{Kind: KindConfigConflict}
	ErrPartialIngest       = &Error{Kind: KindPartialIngest}
	ErrDimensionMismatch   = &Error{Kind: KindDimensionMismatch}
	ErrGenerationTimeout   = &Error{Kind: KindGenerationTimeout}
	ErrGenerationUpstream  = &Error{Kind: KindGenerationUpstream}
)

// E builds an *Error. err may be nil.
func E(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Code()
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	default:
		return msg
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the internal code for err.
func CodeOf(err error) string {
	return KindOf(err).Code()
}

// UserMessage returns text suitable for an end user. Internal details of the
// cause are never included.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return kindInfo[e.Kind].message
	}
	return kindInfo[KindUnknown].message
}
