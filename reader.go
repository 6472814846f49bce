package ustar

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/ustar/internal/format"
	"github.com/meigma/ustar/internal/header"
	"github.com/meigma/ustar/internal/layout"
)

// Reader provides access to the entries of a loaded archive.
//
// A Reader never modifies its buffer and is safe for concurrent use.
type Reader struct {
	data            []byte
	infos           []FileInfo
	byName          map[string]int
	verifyChecksums bool
	strictTypes     bool
	logger          *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Load scans data into an index of entries.
//
// Scanning stops at the first header with an empty name or when fewer than
// BlockSize bytes remain. The data is retained by the Reader; callers must
// not modify it after calling Load.
func Load(data []byte, opts ...LoadOption) (*Reader, error) {
	r := &Reader{data: data}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.scan(); err != nil {
		return nil, err
	}
	r.log().Debug("archive loaded", "entries", len(r.infos), "size", len(data))
	return r, nil
}

// LoadSource reads all of src and scans it like Load.
func LoadSource(ctx context.Context, src ByteSource, opts ...LoadOption) (*Reader, error) {
	data, err := readByteSource(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("ustar: load %s: %w", src.SourceID(), err)
	}
	return Load(data, opts...)
}

// scan walks the header chain, building the entry index.
func (r *Reader) scan() error {
	size := int64(len(r.data))
	r.byName = make(map[string]int)

	var offset int64
	for offset+BlockSize <= size {
		block := r.data[offset : offset+BlockSize]
		name := header.Name(block)
		if name == "" {
			r.log().Debug("end of archive", "offset", offset)
			break
		}

		if r.verifyChecksums {
			if err := header.Verify(block); err != nil {
				return fmt.Errorf("entry %q at offset %d: %w", name, offset, err)
			}
		}
		h, err := header.Decode(block)
		if err != nil {
			return fmt.Errorf("entry %q at offset %d: %w", name, offset, err)
		}
		if r.strictTypes && !format.KnownFlag(h.Flag) {
			return fmt.Errorf("entry %q at offset %d: %w: unsupported typeflag %q", name, offset, ErrMalformed, h.Flag)
		}
		if h.Size > size-offset-BlockSize {
			return fmt.Errorf("entry %q at offset %d: %w: %d content bytes exceed archive", name, offset, ErrMalformed, h.Size)
		}

		if _, dup := r.byName[name]; !dup {
			r.byName[name] = len(r.infos)
		}
		r.infos = append(r.infos, fileInfoFromHeader(&h, offset))
		offset += layout.EntrySpan(h.Size)
	}
	return nil
}

func fileInfoFromHeader(h *header.Header, offset int64) FileInfo {
	return FileInfo{
		Name:         h.Name,
		Type:         h.Type,
		Size:         h.Size,
		HeaderOffset: offset,
		Mode:         h.Mode,
		UID:          h.UID,
		GID:          h.GID,
		ModTime:      time.Unix(h.ModTime, 0).UTC(),
		User:         h.User,
		Group:        h.Group,
		Typeflag:     h.Flag,
	}
}

// FileInfos returns the entries in archive order.
// The returned slice is a copy.
func (r *Reader) FileInfos() []FileInfo {
	return slices.Clone(r.infos)
}

// Entries returns an iterator over the entries in archive order.
func (r *Reader) Entries() iter.Seq[FileInfo] {
	return func(yield func(FileInfo) bool) {
		for _, info := range r.infos {
			if !yield(info) {
				return
			}
		}
	}
}

// Len returns the number of entries in the archive.
func (r *Reader) Len() int {
	return len(r.infos)
}

// Lookup returns the first entry with the given name.
func (r *Reader) Lookup(name string) (FileInfo, bool) {
	i, ok := r.byName[name]
	if !ok {
		return FileInfo{}, false
	}
	return r.infos[i], true
}

// TextFile returns the content of the first entry named name as a string.
func (r *Reader) TextFile(name string) (string, error) {
	content, err := r.content("textfile", name)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// FileBlob returns the content of the first entry named name, tagged with
// mimeType. The blob aliases the Reader's buffer.
func (r *Reader) FileBlob(name, mimeType string) (*Blob, error) {
	content, err := r.content("fileblob", name)
	if err != nil {
		return nil, err
	}
	return &Blob{data: content, mimeType: mimeType}, nil
}

// ReadFile returns a copy of the content of the first entry named name.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	content, err := r.content("readfile", name)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(content), nil
}

// Digest returns the SHA-256 digest of the content of the first entry
// named name.
func (r *Reader) Digest(name string) (digest.Digest, error) {
	content, err := r.content("digest", name)
	if err != nil {
		return "", err
	}
	return digest.FromBytes(content), nil
}

// content returns the entry's bytes as a capacity-limited view of the buffer.
func (r *Reader) content(op, name string) ([]byte, error) {
	info, ok := r.Lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: op, Path: name, Err: ErrNotFound}
	}
	// scan guarantees the range lies within the buffer.
	start := int(info.DataOffset())
	end := start + int(info.Size)
	return r.data[start:end:end], nil
}
