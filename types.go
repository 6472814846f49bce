package ustar

import (
	"context"
	"io"
	"time"

	"github.com/meigma/ustar/internal/format"
	"github.com/meigma/ustar/internal/resolve"
)

// EntryType identifies the kind of an archive entry.
type EntryType = format.EntryType

// Entry types.
const (
	TypeFile      = format.TypeFile
	TypeDirectory = format.TypeDirectory
)

// Format constants.
const (
	// BlockSize is the size of a header block and the content alignment unit.
	BlockSize = format.BlockSize

	// RecordSize is the unit archives are padded to.
	RecordSize = format.RecordSize

	// MaxFileSize is the largest content size a header can describe.
	MaxFileSize = format.MaxSize
)

// Source produces file content on demand. It is resolved once per
// [Writer.Write] call.
//
// A Source may also implement Size() int64 to declare its length up front
// (the resolved content must match) and SourceID() string to let sources
// sharing an identifier resolve only once per Write.
type Source = resolve.Source

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context) ([]byte, error)

// Resolve calls f(ctx).
func (f SourceFunc) Resolve(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// ByteSource provides random access to bytes of a known size.
//
// Implementations exist for in-memory data and HTTP range requests.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// FileInfo describes an entry found by [Load].
//
// HeaderOffset is the absolute offset of the entry's header block within
// the loaded buffer; content starts one block later.
type FileInfo struct {
	Name         string
	Type         EntryType
	Size         int64
	HeaderOffset int64

	// Metadata decoded from the header. Fields that fail to decode are zero.
	Mode     int64
	UID      int64
	GID      int64
	ModTime  time.Time
	User     string
	Group    string
	Typeflag byte
}

// IsDir reports whether the entry is a directory.
func (fi FileInfo) IsDir() bool {
	return fi.Type == TypeDirectory
}

// DataOffset returns the absolute offset of the entry's content.
func (fi FileInfo) DataOffset() int64 {
	return fi.HeaderOffset + BlockSize
}

// WriteOptions holds the header metadata written for an entry.
//
// Entry options are applied over the Writer's defaults field by field.
type WriteOptions struct {
	UID     int64
	GID     int64
	Mode    int64
	ModTime time.Time
	User    string
	Group   string
}
