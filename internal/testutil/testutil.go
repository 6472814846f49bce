// Package testutil provides in-memory sources and tar fixtures for tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data     []byte
	sourceID string
	reads    atomic.Int64
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	sum := sha256.Sum256(data)
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + hex.EncodeToString(sum[:]),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.reads.Add(1)
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if off+int64(n) >= int64(len(m.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}

// Reads returns the number of ReadAt calls made so far.
func (m *MockByteSource) Reads() int64 {
	return m.reads.Load()
}

// ContentSource is a deferred source that returns fixed content.
// It records how many times it was resolved.
type ContentSource struct {
	Data  []byte
	Err   error
	ID    string
	Delay time.Duration

	calls atomic.Int64
}

// Resolve returns Data or Err after Delay, honoring cancellation.
func (s *ContentSource) Resolve(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Data, nil
}

// SourceID returns ID, which may be empty.
func (s *ContentSource) SourceID() string {
	return s.ID
}

// Calls returns the number of Resolve calls made so far.
func (s *ContentSource) Calls() int64 {
	return s.calls.Load()
}

// SizedSource is a ContentSource that declares its size up front.
type SizedSource struct {
	ContentSource
	Declared int64
}

// Size returns the declared size.
func (s *SizedSource) Size() int64 {
	return s.Declared
}

// ErrSourceFailed is the error returned by failing test sources.
var ErrSourceFailed = errors.New("testutil: source failed")

// Gauge tracks the number of concurrently running operations.
type Gauge struct {
	mu      sync.Mutex
	current int
	peak    int
}

// Enter records the start of an operation.
func (g *Gauge) Enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	g.peak = max(g.peak, g.current)
}

// Exit records the end of an operation.
func (g *Gauge) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current--
}

// Peak returns the highest concurrency observed.
func (g *Gauge) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

// GaugedSource resolves fixed content while reporting to a Gauge.
type GaugedSource struct {
	Data     []byte
	Gauge    *Gauge
	Hold     time.Duration
	Declared int64
}

// Resolve holds the gauge for Hold before returning Data.
func (s *GaugedSource) Resolve(ctx context.Context) ([]byte, error) {
	s.Gauge.Enter()
	defer s.Gauge.Exit()
	select {
	case <-time.After(s.Hold):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Data, nil
}

// Size returns the declared size.
func (s *GaugedSource) Size() int64 {
	return s.Declared
}

// StdEntry describes an entry read or written with archive/tar.
type StdEntry struct {
	Name     string
	Typeflag byte
	Mode     int64
	UID      int
	GID      int
	Uname    string
	Gname    string
	ModTime  time.Time
	Content  []byte
}

// BuildStdTar writes entries with archive/tar in USTAR format.
func BuildStdTar(tb testing.TB, entries []StdEntry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.Name,
			Typeflag: e.Typeflag,
			Mode:     e.Mode,
			Uid:      e.UID,
			Gid:      e.GID,
			Uname:    e.Uname,
			Gname:    e.Gname,
			ModTime:  e.ModTime,
			Size:     int64(len(e.Content)),
			Format:   tar.FormatUSTAR,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			tb.Fatalf("write header %s: %v", e.Name, err)
		}
		if _, err := tw.Write(e.Content); err != nil {
			tb.Fatalf("write content %s: %v", e.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		tb.Fatalf("close tar writer: %v", err)
	}
	return buf.Bytes()
}

// ReadStdTar reads every entry of data with archive/tar.
func ReadStdTar(tb testing.TB, data []byte) []StdEntry {
	tb.Helper()

	var entries []StdEntry
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries
		}
		if err != nil {
			tb.Fatalf("read tar header: %v", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			tb.Fatalf("read tar content %s: %v", hdr.Name, err)
		}
		entries = append(entries, StdEntry{
			Name:     hdr.Name,
			Typeflag: hdr.Typeflag,
			Mode:     hdr.Mode,
			UID:      hdr.Uid,
			GID:      hdr.Gid,
			Uname:    hdr.Uname,
			Gname:    hdr.Gname,
			ModTime:  hdr.ModTime,
			Content:  content,
		})
	}
}
