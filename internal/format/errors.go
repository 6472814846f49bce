package format

import "errors"

// Sentinel errors for header encoding and decoding.
var (
	// ErrMalformed is returned when header bytes cannot be decoded.
	ErrMalformed = errors.New("ustar: malformed header")

	// ErrChecksum is returned when a header checksum does not match its bytes.
	ErrChecksum = errors.New("ustar: checksum mismatch")

	// ErrFieldOverflow is returned when a value does not fit its header field.
	ErrFieldOverflow = errors.New("ustar: field overflow")
)
