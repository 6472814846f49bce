package ustar

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ustar/internal/testutil"
)

// buildArchive writes the named text files with default metadata.
func buildArchive(t *testing.T, files ...string) []byte {
	t.Helper()
	w := newTestWriter()
	for i := 0; i+1 < len(files); i += 2 {
		require.NoError(t, w.AddFile(files[i], Text(files[i+1])))
	}
	return writeArchive(t, w).Bytes()
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	r, err := Load(buildArchive(t, "a.txt", "hello"))
	require.NoError(t, err)

	_, err = r.TextFile("missing.txt")
	require.ErrorIs(t, err, ErrNotFound)
	var pathErr *fs.PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "textfile", pathErr.Op)
	assert.Equal(t, "missing.txt", pathErr.Path)

	_, err = r.FileBlob("missing.txt", "text/plain")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.ReadFile("missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Digest("missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, ok := r.Lookup("missing.txt")
	assert.False(t, ok)
}

func TestLoad_EmptyInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"short", make([]byte, 100)},
		{"one zero block", make([]byte, BlockSize)},
		{"zero record", make([]byte, RecordSize)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := Load(tt.data)
			require.NoError(t, err)
			assert.Zero(t, r.Len())
			assert.Empty(t, r.FileInfos())
		})
	}
}

func TestLoad_StopsAtEmptyName(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, "first", "1", "second", "2")
	clear(data[1024 : 1024+100])

	r, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())
	assert.Equal(t, "first", r.FileInfos()[0].Name)
}

func TestLoad_HeaderEndingAtBufferEnd(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, "only", "")
	r, err := Load(data[:BlockSize])
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())
	assert.Equal(t, "only", r.FileInfos()[0].Name)
}

func TestLoad_TrailingPartialBlock(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, "a", "hello")
	data = append(data, bytes.Repeat([]byte{'z'}, 300)...)

	r, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestLoad_HeadersAreBlockAligned(t *testing.T) {
	t.Parallel()

	w := newTestWriter()
	for _, size := range []int{0, 1, 511, 512, 513, 1500} {
		require.NoError(t, w.AddFile("f", Bytes(bytes.Repeat([]byte{'q'}, size))))
	}
	r, err := Load(writeArchive(t, w).Bytes())
	require.NoError(t, err)
	require.Equal(t, 6, r.Len())
	for _, info := range r.FileInfos() {
		assert.Zero(t, info.HeaderOffset%BlockSize)
		assert.Equal(t, info.HeaderOffset+BlockSize, info.DataOffset())
	}
}

func TestLoad_MalformedSize(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, "a.txt", "hello")
	copy(data[124:136], "zzzzzzzzzzz\x00")

	_, err := Load(data)
	require.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "a.txt")
}

func TestLoad_Truncated(t *testing.T) {
	t.Parallel()

	w := newTestWriter()
	require.NoError(t, w.AddFile("big", Bytes(bytes.Repeat([]byte{'b'}, 2000))))
	data := writeArchive(t, w).Bytes()

	_, err := Load(data[:1024])
	require.ErrorIs(t, err, ErrMalformed)
}

func TestLoad_LenientMetadata(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, "a.txt", "hello")
	copy(data[100:108], "bogus!!\x00")

	r, err := Load(data)
	require.NoError(t, err)
	info, ok := r.Lookup("a.txt")
	require.True(t, ok)
	assert.Zero(t, info.Mode)
	assert.Equal(t, int64(5), info.Size)
}

func TestLoad_VerifyChecksums(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, "a.txt", "hello")
	data[0] = 'b'

	r, err := Load(data)
	require.NoError(t, err, "checksums are not verified by default")
	_, ok := r.Lookup("b.txt")
	assert.True(t, ok)

	_, err = Load(data, LoadWithVerifyChecksums(true))
	assert.ErrorIs(t, err, ErrChecksum)

	_, err = Load(buildArchive(t, "a.txt", "hello"), LoadWithVerifyChecksums(true))
	assert.NoError(t, err)
}

func TestLoad_Typeflags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		flag     byte
		wantType EntryType
		strictOK bool
	}{
		{"regular", '0', TypeFile, true},
		{"old regular", 0, TypeFile, true},
		{"directory", '5', TypeDirectory, true},
		{"symlink", '2', TypeFile, false},
		{"fifo", '6', TypeFile, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := buildArchive(t, "entry", "")
			data[156] = tt.flag

			r, err := Load(data)
			require.NoError(t, err)
			info, ok := r.Lookup("entry")
			require.True(t, ok)
			assert.Equal(t, tt.wantType, info.Type)
			assert.Equal(t, tt.flag, info.Typeflag)

			_, err = Load(data, LoadWithStrictTypes(true))
			if tt.strictOK {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMalformed)
			}
		})
	}
}

func TestLoad_DuplicateNamesFirstWins(t *testing.T) {
	t.Parallel()

	r, err := Load(buildArchive(t, "dup", "first", "other", "x", "dup", "second"))
	require.NoError(t, err)

	assert.Equal(t, 3, r.Len())
	text, err := r.TextFile("dup")
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	info, _ := r.Lookup("dup")
	assert.Equal(t, int64(0), info.HeaderOffset)
}

func TestReader_FileBlob(t *testing.T) {
	t.Parallel()

	r, err := Load(buildArchive(t, "page.html", "<p>hi</p>", "after", "tail"))
	require.NoError(t, err)

	blob, err := r.FileBlob("page.html", "text/html")
	require.NoError(t, err)
	assert.Equal(t, "text/html", blob.MimeType())
	assert.Equal(t, "<p>hi</p>", blob.Text())
	assert.Equal(t, int64(9), blob.Size())
	assert.Equal(t, len(blob.Bytes()), cap(blob.Bytes()))

	got, err := io.ReadAll(blob.NewReader())
	require.NoError(t, err)
	assert.Equal(t, []byte("<p>hi</p>"), got)

	text, err := r.TextFile("after")
	require.NoError(t, err)
	assert.Equal(t, "tail", text)
}

func TestReader_ReadFileReturnsCopy(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, "a", "hello")
	r, err := Load(data)
	require.NoError(t, err)

	content, err := r.ReadFile("a")
	require.NoError(t, err)
	content[0] = 'J'

	text, err := r.TextFile("a")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestReader_Digest(t *testing.T) {
	t.Parallel()

	r, err := Load(buildArchive(t, "a", "hello"))
	require.NoError(t, err)

	d, err := r.Digest("a")
	require.NoError(t, err)
	assert.Equal(t, digest.FromString("hello"), d)
}

func TestReader_FileInfosIsCopy(t *testing.T) {
	t.Parallel()

	r, err := Load(buildArchive(t, "a", "1", "b", "2"))
	require.NoError(t, err)

	infos := r.FileInfos()
	infos[0].Name = "changed"
	assert.Equal(t, "a", r.FileInfos()[0].Name)
}

func TestReader_EntriesStopsEarly(t *testing.T) {
	t.Parallel()

	r, err := Load(buildArchive(t, "a", "1", "b", "2", "c", "3"))
	require.NoError(t, err)

	var names []string
	for info := range r.Entries() {
		names = append(names, info.Name)
		if info.Name == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestLoad_ArchiveTarOutput(t *testing.T) {
	t.Parallel()

	mtime := time.Unix(1600000000, 0)
	data := testutil.BuildStdTar(t, []testutil.StdEntry{
		{Name: "etc/", Typeflag: '5', Mode: 0o755, UID: 0, GID: 0, Uname: "root", Gname: "root", ModTime: mtime},
		{Name: "etc/hosts", Typeflag: '0', Mode: 0o644, UID: 0, GID: 0, Uname: "root", Gname: "root", ModTime: mtime, Content: []byte("127.0.0.1 localhost\n")},
		{Name: "big.bin", Typeflag: '0', Mode: 0o600, UID: 42, GID: 7, Uname: "app", Gname: "svc", ModTime: mtime, Content: bytes.Repeat([]byte{9}, 1025)},
	})

	r, err := Load(data, LoadWithVerifyChecksums(true), LoadWithStrictTypes(true))
	require.NoError(t, err)
	require.Equal(t, 3, r.Len())

	dir, ok := r.Lookup("etc/")
	require.True(t, ok)
	assert.True(t, dir.IsDir())
	assert.Equal(t, int64(0o755), dir.Mode)
	assert.Equal(t, "root", dir.User)

	hosts, err := r.TextFile("etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n", hosts)

	big, ok := r.Lookup("big.bin")
	require.True(t, ok)
	assert.Equal(t, int64(1025), big.Size)
	assert.Equal(t, int64(42), big.UID)
	assert.Equal(t, int64(7), big.GID)
	assert.Equal(t, "app", big.User)
	assert.Equal(t, "svc", big.Group)
	assert.True(t, mtime.Equal(big.ModTime))
	content, err := r.ReadFile("big.bin")
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{9}, 1025), content)
}

func TestLoadSource(t *testing.T) {
	t.Parallel()

	src := testutil.NewMockByteSource(buildArchive(t, "a.txt", "hello"))
	r, err := LoadSource(context.Background(), src)
	require.NoError(t, err)

	text, err := r.TextFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

type shortSource struct {
	*testutil.MockByteSource
}

func (s shortSource) Size() int64 { return s.MockByteSource.Size() + 10 }

func TestLoadSource_ShortRead(t *testing.T) {
	t.Parallel()

	src := shortSource{testutil.NewMockByteSource(buildArchive(t, "a", "x"))}
	_, err := LoadSource(context.Background(), src)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), src.SourceID())
}

func TestLoadSource_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadSource(ctx, testutil.NewMockByteSource(buildArchive(t, "a", "x")))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoad_Logger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Load(buildArchive(t, "a", "x"), LoadWithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "archive loaded")
	assert.Contains(t, buf.String(), "entries=1")
}
