package protocol

import (
	"errors"
	"fmt"
)

// Reason identifies why a frame could not be decoded.
type Reason uint8

const (
	ReasonUnknown           Reason = 0x00 // Unknown failure
	ReasonInvalidUTF8       Reason = 0x01 // Payload is not valid UTF-8
	ReasonMalformedDocument Reason = 0x02 // Payload is not a JSON document
	ReasonTooDeep           Reason = 0x03 // Document nests deeper than MaxDocumentDepth
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonInvalidUTF8:
		return "InvalidUTF8"
	case ReasonMalformedDocument:
		return "MalformedDocument"
	case ReasonTooDeep:
		return "TooDeep"
	default:
		return "Unknown"
	}
}

// Sentinel decode errors.
var (
	// ErrInvalidUTF8 is wrapped by DecodeError when the payload is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("protocol: payload is not valid utf-8")

	// ErrMaxDepthExceeded is wrapped by DecodeError when the document is too deep.
	ErrMaxDepthExceeded = errors.New("protocol: maximum nesting depth exceeded")
)

// DecodeError is returned by Decode for any frame that does not yield a message.
type DecodeError struct {
	Reason Reason
	Err    error
}

// Error returns the error message.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode %s: %v", e.Reason, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is (or wraps) a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
