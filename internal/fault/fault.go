// Package fault defines the error kinds reported by the field extraction pipeline.
//
// Every stage either returns its artifact or a *Error carrying one of the Kind
// values below. The pipeline annotates the error with the stage that produced it,
// so callers can print "stage N (name) failed: <message>" or branch on the kind.
package fault

import (
	"errors"
	"fmt"
)

// Kind enumerates the failure classes of a pipeline run.
type Kind int

const (
	// Unknown is returned by KindOf for errors that did not originate here.
	Unknown Kind = iota
	// DecodeFailure means the image is absent or cannot be decoded.
	DecodeFailure
	// SeedOutOfBounds means the seed point lies outside the image.
	SeedOutOfBounds
	// EmptySampleArea means no pixels remained in the sampling disk.
	EmptySampleArea
	// SeedNotOnRegion means the seed pixel is background after smoothing.
	SeedNotOnRegion
	// NoContourFound means the seed component has no usable outer boundary.
	NoContourFound
	// InvalidMapContext means map center, zoom or bounds are missing or malformed.
	InvalidMapContext
)

var kindNames = map[Kind]string{
	Unknown:           "unknown",
	DecodeFailure:     "decode_failure",
	SeedOutOfBounds:   "seed_out_of_bounds",
	EmptySampleArea:   "empty_sample_area",
	SeedNotOnRegion:   "seed_not_on_region",
	NoContourFound:    "no_contour_found",
	InvalidMapContext: "invalid_map_context",
}

// String returns the snake_case name used in logs and JSON error payloads.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified pipeline failure.
//
// Stage and Index are empty until the pipeline attaches them; a stage function
// called directly returns an Error with only Kind, Msg and optionally Err set.
type Error struct {
	Kind  Kind
	Stage string
	Index int
	Msg   string
	Err   error
}

// Error formats the failure. Errors annotated by the pipeline read
// "stage 4 (extract) failed: selected point is not on a foreground area".
func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stage == "" {
		return msg
	}
	return fmt.Sprintf("stage %d (%s) failed: %s", e.Index, e.Stage, msg)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around an underlying cause.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the Kind of err, or Unknown if err is not (and does not wrap) an *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// AtStage returns a copy of err annotated with the pipeline stage. Errors that are
// not *Error are wrapped with Unknown kind so the stage is still reported.
func AtStage(err error, index int, stage string) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		annotated := *fe
		annotated.Index = index
		annotated.Stage = stage
		return &annotated
	}
	return &Error{Kind: Unknown, Stage: stage, Index: index, Msg: "unexpected error", Err: err}
}
