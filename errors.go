package jpeg

import "fmt"

// FormatError reports a bitstream that violates the JPEG syntax: a bad
// marker sequence, an invalid Huffman code, an out-of-range field, or any
// other condition that makes the image unrecoverable short of rejecting it.
type FormatError string

func (e FormatError) Error() string { return "jpeg: invalid format: " + string(e) }

// UnsupportedError reports a well-formed JPEG feature this decoder does not
// implement: hierarchical mode, arithmetic coding, 12/16-bit precision for
// non-lossless frames, DNL, JCS_BG* color spaces, and so on.
type UnsupportedError string

func (e UnsupportedError) Error() string { return "jpeg: unsupported feature: " + string(e) }

// ReadError wraps a failure from the underlying Reader, including a short
// read against the stream's expected length.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "jpeg: read error: " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// ErrUnexpectedEOF is returned by Reader implementations when fewer bytes
// than requested are available.
var ErrUnexpectedEOF = &ReadError{Err: fmt.Errorf("unexpected end of stream")}

// forwardError prefixes an error with additional context while preserving
// its concrete type for errors.As/errors.Is callers.
func forwardError(prefix string, err error) error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case FormatError:
		return FormatError(prefix + ": " + string(e))
	case UnsupportedError:
		return UnsupportedError(prefix + ": " + string(e))
	default:
		return fmt.Errorf("%s: %w", prefix, err)
	}
}
