package ustar

import "log/slog"

// LoadOption configures a Reader.
type LoadOption func(*Reader)

// LoadWithVerifyChecksums controls whether every header checksum is
// validated during Load. Mismatches fail with ErrChecksum.
// By default checksums are not checked.
func LoadWithVerifyChecksums(enabled bool) LoadOption {
	return func(r *Reader) {
		r.verifyChecksums = enabled
	}
}

// LoadWithStrictTypes controls whether typeflags other than regular file
// and directory are rejected with ErrMalformed. By default every
// unrecognized typeflag reads as a regular file.
func LoadWithStrictTypes(enabled bool) LoadOption {
	return func(r *Reader) {
		r.strictTypes = enabled
	}
}

// LoadWithLogger sets the logger for archive scanning.
// If not set, logging is disabled.
func LoadWithLogger(logger *slog.Logger) LoadOption {
	return func(r *Reader) {
		r.logger = logger
	}
}
