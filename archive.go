package ustar

import (
	"bytes"
	"sync"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Media types an archive can be tagged with.
const (
	// MediaType is the default media type of written archives.
	MediaType = "application/x-tar"

	// MediaTypeOCILayer tags an archive as an uncompressed OCI image layer.
	MediaTypeOCILayer = ocispec.MediaTypeImageLayer
)

// Archive is a serialized tar archive.
type Archive struct {
	data      []byte
	mediaType string

	digestOnce sync.Once
	digest     digest.Digest
}

func newArchive(data []byte, mediaType string) *Archive {
	if mediaType == "" {
		mediaType = MediaType
	}
	return &Archive{data: data, mediaType: mediaType}
}

// Bytes returns the archive bytes. The length is a multiple of RecordSize.
func (a *Archive) Bytes() []byte {
	return a.data
}

// Size returns the archive length in bytes.
func (a *Archive) Size() int64 {
	return int64(len(a.data))
}

// MediaType returns the media type the archive is tagged with.
func (a *Archive) MediaType() string {
	return a.mediaType
}

// NewReader returns a reader over the archive bytes.
func (a *Archive) NewReader() *bytes.Reader {
	return bytes.NewReader(a.data)
}

// Digest returns the SHA-256 digest of the archive bytes.
// It is computed on first call and cached.
func (a *Archive) Digest() digest.Digest {
	a.digestOnce.Do(func() {
		a.digest = digest.FromBytes(a.data)
	})
	return a.digest
}

// Descriptor returns an OCI content descriptor for the archive.
func (a *Archive) Descriptor() ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType: a.mediaType,
		Digest:    a.Digest(),
		Size:      a.Size(),
	}
}
