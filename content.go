package ustar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/ustar/internal/layout"
)

// Content is the content of a file entry: materialized bytes or a deferred
// source. The zero value is an empty file.
type Content struct {
	data []byte
	src  Source
}

// Bytes returns content holding a copy of b.
func Bytes(b []byte) Content {
	return Content{data: bytes.Clone(b)}
}

// Text returns content holding the UTF-8 bytes of s.
func Text(s string) Content {
	return Content{data: []byte(s)}
}

// Deferred returns content resolved from src when the archive is written.
// A nil src is an empty file.
func Deferred(src Source) Content {
	return Content{src: src}
}

// FromByteSource returns deferred content that reads all of src.
// The size is known up front and sources sharing a SourceID are read once
// per Write.
func FromByteSource(src ByteSource) Content {
	if src == nil {
		return Content{}
	}
	return Content{src: byteSourceContent{src}}
}

// materialized reports whether the content size is known without resolving.
func (c Content) materialized() bool {
	return c.src == nil
}

// byteSourceContent adapts a ByteSource to a sized, identified Source.
type byteSourceContent struct {
	ByteSource
}

func (b byteSourceContent) Resolve(ctx context.Context) ([]byte, error) {
	return readByteSource(ctx, b.ByteSource)
}

// readByteSource reads the whole of src. A source that also implements
// Source is resolved directly.
func readByteSource(ctx context.Context, src ByteSource) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s, ok := src.(Source); ok {
		return s.Resolve(ctx)
	}
	size, err := layout.ToInt(src.Size(), ErrFieldOverflow)
	if err != nil {
		return nil, fmt.Errorf("source size %d: %w", src.Size(), err)
	}
	buf := make([]byte, size)
	n, err := src.ReadAt(buf, 0)
	if n == size && (err == nil || errors.Is(err, io.EOF)) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d of %d bytes: %w", n, size, err)
}
