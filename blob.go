package ustar

import "bytes"

// Blob is entry content tagged with a MIME type.
//
// Blob aliases the archive buffer it was read from; Bytes must be treated
// as read-only.
type Blob struct {
	data     []byte
	mimeType string
}

// Bytes returns the content. The slice aliases the archive buffer.
func (b *Blob) Bytes() []byte {
	return b.data
}

// Size returns the content length in bytes.
func (b *Blob) Size() int64 {
	return int64(len(b.data))
}

// MimeType returns the MIME type the blob was tagged with.
func (b *Blob) MimeType() string {
	return b.mimeType
}

// Text returns the content as a string.
func (b *Blob) Text() string {
	return string(b.data)
}

// NewReader returns a reader over the content.
func (b *Blob) NewReader() *bytes.Reader {
	return bytes.NewReader(b.data)
}
