package ustar

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/meigma/ustar/internal/format"
	"github.com/meigma/ustar/internal/header"
	"github.com/meigma/ustar/internal/layout"
	"github.com/meigma/ustar/internal/resolve"
)

// Writer accumulates entries and serializes them into a tar archive.
//
// Entries are written in the order they were added and cannot be changed
// once added. A Writer is safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	items []item

	defaults    WriteOptions
	concurrency int
	budget      int64
	clock       func() time.Time
	mediaType   string
	logger      *slog.Logger
}

// item is an entry awaiting serialization.
type item struct {
	name    string
	typ     EntryType
	content Content
	opts    []EntryOption
}

// NewWriter creates an empty Writer.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{
		defaults: WriteOptions{
			UID:   DefaultUID,
			GID:   DefaultGID,
			User:  DefaultUser,
			Group: DefaultGroup,
		},
		concurrency: resolve.DefaultConcurrency,
		clock:       time.Now,
		mediaType:   MediaType,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.clock == nil {
		w.clock = time.Now
	}
	return w
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.logger
}

// AddFile adds a regular file entry.
//
// Materialized content is captured immediately; deferred content is
// resolved by Write. Names longer than 100 bytes are truncated when written.
func (w *Writer) AddFile(name string, content Content, opts ...EntryOption) error {
	return w.add(item{name: name, typ: TypeFile, content: content, opts: opts})
}

// AddFolder adds a directory entry with no content.
func (w *Writer) AddFolder(name string, opts ...EntryOption) error {
	return w.add(item{name: name, typ: TypeDirectory, opts: opts})
}

func (w *Writer) add(it item) error {
	if it.name == "" {
		return ErrEmptyName
	}
	it.opts = slices.Clone(it.opts)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, it)
	if it.content.materialized() {
		w.log().Debug("entry added", "name", it.name, "type", it.typ.String(), "size", len(it.content.data))
	} else {
		w.log().Debug("entry added", "name", it.name, "type", it.typ.String(), "deferred", true)
	}
	return nil
}

// Len returns the number of entries added so far.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// Write resolves all deferred content and serializes the archive.
//
// Deferred sources are resolved concurrently before any bytes are written.
// If any source fails, Write returns an error wrapping ErrSourceResolution
// and no archive. Entries that leave the modification time unset all
// receive the time Write started.
func (w *Writer) Write(ctx context.Context) (*Archive, error) {
	w.mu.Lock()
	items := slices.Clone(w.items)
	w.mu.Unlock()

	now := w.clock()
	w.log().Info("writing archive", "entries", len(items))

	contents, err := w.resolve(ctx, items)
	if err != nil {
		return nil, err
	}

	var total int64
	for i, it := range items {
		size := int64(len(contents[i]))
		if size > format.MaxSize {
			return nil, fmt.Errorf("ustar: write %q: %w: %d bytes exceeds %d", it.name, ErrFieldOverflow, size, int64(format.MaxSize))
		}
		var ok bool
		if total, ok = layout.AddInt64(total, layout.EntrySpan(size)); !ok {
			return nil, fmt.Errorf("ustar: %w: archive size", ErrFieldOverflow)
		}
	}
	length, err := layout.ToInt(layout.ArchiveCeil(total), ErrFieldOverflow)
	if err != nil {
		return nil, fmt.Errorf("ustar: archive size: %w", err)
	}
	buf := make([]byte, length)

	offset := 0
	for i, it := range items {
		content := contents[i]
		h := w.header(&it, int64(len(content)), now)
		if len(it.name) > format.FieldName.Size {
			w.log().Warn("entry name truncated", "name", it.name, "limit", format.FieldName.Size)
		}
		if err := header.Encode(buf[offset:offset+BlockSize], &h); err != nil {
			return nil, fmt.Errorf("ustar: write %q: %w", it.name, err)
		}
		copy(buf[offset+BlockSize:], content)
		offset += int(layout.EntrySpan(int64(len(content))))
	}

	w.log().Info("archive written", "entries", len(items), "size", length)
	return newArchive(buf, w.mediaType), nil
}

// resolve returns the content of every item, indexed like items.
// Directories resolve to nil.
func (w *Writer) resolve(ctx context.Context, items []item) ([][]byte, error) {
	jobs := make([]resolve.Job, len(items))
	for i, it := range items {
		jobs[i] = resolve.Job{Name: it.name, Source: it.content.src}
	}

	r := resolve.New(
		resolve.WithConcurrency(w.concurrency),
		resolve.WithBudget(w.budget),
		resolve.WithLogger(w.logger),
	)
	resolved, err := r.Resolve(ctx, jobs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceResolution, err)
	}

	for i, it := range items {
		if it.content.materialized() {
			resolved[i] = it.content.data
		}
	}
	return resolved, nil
}

// header merges the item's options over the writer defaults.
func (w *Writer) header(it *item, size int64, now time.Time) header.Header {
	opts := w.defaults
	opts.Mode = it.typ.DefaultMode()
	opts.ModTime = now
	for _, opt := range it.opts {
		opt(&opts)
	}
	if opts.ModTime.IsZero() {
		opts.ModTime = now
	}
	return header.Header{
		Name:    it.name,
		Type:    it.typ,
		Size:    size,
		Mode:    opts.Mode,
		UID:     opts.UID,
		GID:     opts.GID,
		ModTime: opts.ModTime.Unix(),
		User:    opts.User,
		Group:   opts.Group,
	}
}
