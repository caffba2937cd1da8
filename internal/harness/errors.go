package harness

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes harness failures.
type ErrorCode string

const (
	// ErrCodeSniffRejected indicates the extractor did not recognize a
	// format it was expected to recognize.
	ErrCodeSniffRejected ErrorCode = "SNIFF_REJECTED"

	// ErrCodeProtocolViolation indicates the extractor broke the
	// read/seek contract, e.g. returned ResultSeek without writing a
	// valid position into the armed seek slot.
	ErrCodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"

	// ErrCodeGoldenMismatch indicates the recorded output differs from
	// the stored golden dump.
	ErrCodeGoldenMismatch ErrorCode = "GOLDEN_MISMATCH"

	// ErrCodeExpectedFailureNotRaised indicates a failure-path run
	// reached the end of input without raising the expected error.
	ErrCodeExpectedFailureNotRaised ErrorCode = "EXPECTED_FAILURE_NOT_RAISED"

	// ErrCodeWrongFailureKind indicates a failure-path run raised an
	// error of a different kind than expected.
	ErrCodeWrongFailureKind ErrorCode = "WRONG_FAILURE_KIND"
)

// Error is a structured harness failure. Everything except the
// transient fault sentinel propagates to the top of the current matrix
// cell as one of these.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Sample names the sample file under test, when known.
	Sample string

	// Variant names the golden dump variant involved, when any.
	Variant string

	// Detail carries additional context such as the offending seek
	// position or the first point of divergence.
	Detail map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Sample != "" && e.Variant != "":
		return fmt.Sprintf("%s: %s (sample=%s, variant=%s)", e.Code, e.Message, e.Sample, e.Variant)
	case e.Sample != "":
		return fmt.Sprintf("%s: %s (sample=%s)", e.Code, e.Message, e.Sample)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsProtocolViolation reports whether err is a protocol violation.
// Uses errors.As to handle wrapped errors.
func IsProtocolViolation(err error) bool { return hasCode(err, ErrCodeProtocolViolation) }

// IsGoldenMismatch reports whether err is a golden mismatch.
func IsGoldenMismatch(err error) bool { return hasCode(err, ErrCodeGoldenMismatch) }

// IsSniffRejected reports whether err is a sniff rejection.
func IsSniffRejected(err error) bool { return hasCode(err, ErrCodeSniffRejected) }

func hasCode(err error, code ErrorCode) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Code == code
	}
	return false
}

// newSeekPositionViolation reports an invalid position written to the
// armed seek slot. The offending value is preserved in Detail.
func newSeekPositionViolation(position int64) *Error {
	return &Error{
		Code:    ErrCodeProtocolViolation,
		Message: "extractor requested a seek outside [0, maxAddressable]",
		Detail:  map[string]string{"position": fmt.Sprintf("%d", position)},
	}
}

func newSniffRejected(sample string) *Error {
	return &Error{
		Code:    ErrCodeSniffRejected,
		Message: "extractor did not recognize the sample format",
		Sample:  sample,
	}
}
