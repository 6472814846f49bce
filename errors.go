package ustar

import (
	"errors"

	"github.com/meigma/ustar/internal/format"
)

// Errors re-exported from the header codec.
var (
	// ErrMalformed is returned when archive bytes cannot be decoded, such as a
	// size field that is not valid octal or content that runs past the buffer.
	ErrMalformed = format.ErrMalformed

	// ErrChecksum is returned by Load when checksum verification is enabled
	// and a header does not match its stored checksum.
	ErrChecksum = format.ErrChecksum

	// ErrFieldOverflow is returned when a value does not fit its header field.
	ErrFieldOverflow = format.ErrFieldOverflow
)

// Sentinel errors specific to the ustar package.
var (
	// ErrNotFound is returned when no entry has the requested name.
	ErrNotFound = errors.New("ustar: file not found")

	// ErrSourceResolution is returned by Write when deferred content cannot be
	// resolved. No archive is produced.
	ErrSourceResolution = errors.New("ustar: source resolution failed")

	// ErrEmptyName is returned when an entry is added without a name.
	ErrEmptyName = errors.New("ustar: empty entry name")
)
