// Package layout provides block arithmetic and safe size conversions shared
// by the archive reader and writer.
package layout

import (
	"io"
	"math"

	"github.com/meigma/ustar/internal/format"
)

// BlockCeil rounds size up to the next multiple of format.BlockSize.
// size must be non-negative.
func BlockCeil(size int64) int64 {
	return (size + format.BlockSize - 1) / format.BlockSize * format.BlockSize
}

// EntrySpan returns the bytes an entry of the given content size occupies:
// one header block plus its padded content.
func EntrySpan(size int64) int64 {
	return format.BlockSize + BlockCeil(size)
}

// ArchiveCeil rounds total up to the next multiple of format.RecordSize.
// An empty archive still occupies one record.
func ArchiveCeil(total int64) int64 {
	if total <= 0 {
		return format.RecordSize
	}
	return (total + format.RecordSize - 1) / format.RecordSize * format.RecordSize
}

// AddInt64 adds two non-negative int64 values, returning (result, false) on overflow.
func AddInt64(a, b int64) (int64, bool) {
	if b > math.MaxInt64-a {
		return 0, false
	}
	return a + b, true
}

// ToInt converts an int64 to int, returning overflowErr if it doesn't fit.
func ToInt(size int64, overflowErr error) (int, error) {
	if size < 0 || size > int64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ReadAllWithLimit reads up to maxSize bytes from r.
// Returns overflowErr if more than maxSize bytes are available.
func ReadAllWithLimit(r io.Reader, maxSize int64, overflowErr error) ([]byte, error) {
	if maxSize < 0 || maxSize > int64(math.MaxInt-1) {
		return nil, overflowErr
	}
	lr := &io.LimitedReader{R: r, N: maxSize + 1}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, overflowErr
	}
	return data, nil
}
