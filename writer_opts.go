package ustar

import (
	"log/slog"
	"time"
)

// Defaults applied to entries that leave a field unset.
const (
	DefaultUID   = 1000
	DefaultGID   = 1000
	DefaultUser  = "ustar"
	DefaultGroup = "ustar"
)

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets the logger for archive writing.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithConcurrency sets the number of deferred sources resolved at once.
// Values < 1 force serial resolution. Zero keeps the default (4).
func WithConcurrency(n int) WriterOption {
	return func(w *Writer) {
		if n == 0 {
			return
		}
		w.concurrency = n
	}
}

// WithResolveBudget caps the total declared size of deferred sources being
// resolved at once. A value of 0 disables the budget.
func WithResolveBudget(limit int64) WriterOption {
	return func(w *Writer) {
		w.budget = limit
	}
}

// WithClock sets the function providing the default modification time.
// It is called once per Write.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) {
		w.clock = now
	}
}

// WithDefaultOwner sets the user and group names written for entries that
// do not set their own.
func WithDefaultOwner(user, group string) WriterOption {
	return func(w *Writer) {
		w.defaults.User = user
		w.defaults.Group = group
	}
}

// WithDefaultIDs sets the uid and gid written for entries that do not set
// their own.
func WithDefaultIDs(uid, gid int64) WriterOption {
	return func(w *Writer) {
		w.defaults.UID = uid
		w.defaults.GID = gid
	}
}

// WithMediaType sets the media type written archives are tagged with.
// The default is MediaType.
func WithMediaType(mediaType string) WriterOption {
	return func(w *Writer) {
		w.mediaType = mediaType
	}
}

// EntryOption overrides header metadata for a single entry.
type EntryOption func(*WriteOptions)

// EntryWithMode sets the permission bits. The default depends on the
// entry type: 0o664 for files, 0o775 for directories.
func EntryWithMode(mode int64) EntryOption {
	return func(o *WriteOptions) {
		o.Mode = mode
	}
}

// EntryWithUID sets the owner's user ID.
func EntryWithUID(uid int64) EntryOption {
	return func(o *WriteOptions) {
		o.UID = uid
	}
}

// EntryWithGID sets the owner's group ID.
func EntryWithGID(gid int64) EntryOption {
	return func(o *WriteOptions) {
		o.GID = gid
	}
}

// EntryWithModTime sets the modification time, stored with one-second
// precision. The zero time keeps the time Write started.
func EntryWithModTime(t time.Time) EntryOption {
	return func(o *WriteOptions) {
		o.ModTime = t
	}
}

// EntryWithUser sets the owner's user name (at most 32 bytes are stored).
func EntryWithUser(user string) EntryOption {
	return func(o *WriteOptions) {
		o.User = user
	}
}

// EntryWithGroup sets the owner's group name (at most 32 bytes are stored).
func EntryWithGroup(group string) EntryOption {
	return func(o *WriteOptions) {
		o.Group = group
	}
}

// EntryWithOptions applies every non-zero field of opts. Zero fields keep
// the value already set; use the single-field options to write a zero uid,
// gid or mode.
func EntryWithOptions(opts WriteOptions) EntryOption {
	return func(o *WriteOptions) {
		if opts.UID != 0 {
			o.UID = opts.UID
		}
		if opts.GID != 0 {
			o.GID = opts.GID
		}
		if opts.Mode != 0 {
			o.Mode = opts.Mode
		}
		if !opts.ModTime.IsZero() {
			o.ModTime = opts.ModTime
		}
		if opts.User != "" {
			o.User = opts.User
		}
		if opts.Group != "" {
			o.Group = opts.Group
		}
	}
}
