// Package header encodes and decodes 512-byte USTAR header blocks.
package header

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/meigma/ustar/internal/format"
)

// checksumDigits is the number of octal digits written for the checksum.
// The field is completed by a NUL and a space, as POSIX tools write it.
const checksumDigits = 6

// Header holds the header fields this package reads and writes.
type Header struct {
	// Name is stored in at most 100 bytes; longer names are truncated.
	Name string

	// Type is the entry kind. Flag holds the raw typeflag after Decode and
	// is ignored by Encode, which writes Type.Flag().
	Type format.EntryType
	Flag byte

	Size    int64
	Mode    int64
	UID     int64
	GID     int64
	ModTime int64 // seconds since the Unix epoch

	// User and Group are stored in at most 32 bytes each.
	User  string
	Group string
}

// Encode writes h into block, overwriting all of its BlockSize bytes, and
// computes the checksum over the populated header.
func Encode(block []byte, h *Header) error {
	if len(block) != format.BlockSize {
		return fmt.Errorf("header block is %d bytes, want %d", len(block), format.BlockSize)
	}
	clear(block)

	putString(format.FieldName.In(block), h.Name)
	numeric := []struct {
		name  string
		field format.Field
		value int64
	}{
		{"mode", format.FieldMode, h.Mode},
		{"uid", format.FieldUID, h.UID},
		{"gid", format.FieldGID, h.GID},
		{"size", format.FieldSize, h.Size},
		{"mtime", format.FieldModTime, h.ModTime},
	}
	for _, n := range numeric {
		if err := PutOctal(n.field.In(block), n.value); err != nil {
			return fmt.Errorf("%s: %w", n.name, err)
		}
	}
	block[format.FieldTypeflag.Offset] = h.Type.Flag()
	copy(format.FieldMagic.In(block), format.Magic)
	copy(format.FieldVersion.In(block), format.Version)
	putString(format.FieldUser.In(block), h.User)
	putString(format.FieldGroup.In(block), h.Group)

	putChecksum(block)
	return nil
}

// Decode reads a header block. The size field must be valid octal; the other
// numeric fields decode leniently to zero, since the layout does not depend
// on them.
func Decode(block []byte) (Header, error) {
	if len(block) < format.BlockSize {
		return Header{}, fmt.Errorf("%w: short header block (%d bytes)", format.ErrMalformed, len(block))
	}
	size, err := ParseOctal(format.FieldSize.In(block))
	if err != nil {
		return Header{}, fmt.Errorf("size: %w", err)
	}
	flag := block[format.FieldTypeflag.Offset]
	return Header{
		Name:    Name(block),
		Type:    format.TypeFromFlag(flag),
		Flag:    flag,
		Size:    size,
		Mode:    parseLenient(format.FieldMode.In(block)),
		UID:     parseLenient(format.FieldUID.In(block)),
		GID:     parseLenient(format.FieldGID.In(block)),
		ModTime: parseLenient(format.FieldModTime.In(block)),
		User:    cString(format.FieldUser.In(block)),
		Group:   cString(format.FieldGroup.In(block)),
	}, nil
}

// Name returns the NUL-terminated name stored in block.
// An empty name marks the end of the archive.
func Name(block []byte) string {
	return cString(format.FieldName.In(block))
}

// Checksum returns the unsigned sum of the header bytes with the checksum
// field counted as eight ASCII spaces.
func Checksum(block []byte) int64 {
	sum, _ := sums(block)
	return sum
}

// Verify checks the stored checksum against the header bytes. Both the
// unsigned sum and the historical signed-byte sum are accepted.
func Verify(block []byte) error {
	stored, err := ParseOctal(format.FieldChecksum.In(block))
	if err != nil {
		return fmt.Errorf("%w: unreadable checksum field", format.ErrChecksum)
	}
	unsigned, signed := sums(block)
	if stored != unsigned && stored != signed {
		return fmt.Errorf("%w: stored %o, computed %o", format.ErrChecksum, stored, unsigned)
	}
	return nil
}

// PutOctal writes v into dst as zero-padded octal digits followed by a NUL.
// The field holds len(dst)-1 digits.
func PutOctal(dst []byte, v int64) error {
	digits := len(dst) - 1
	if digits <= 0 {
		return fmt.Errorf("%w: empty field", format.ErrFieldOverflow)
	}
	if v < 0 || (digits < 21 && v>>(3*digits) != 0) {
		return fmt.Errorf("%w: %d needs more than %d octal digits", format.ErrFieldOverflow, v, digits)
	}
	s := strconv.FormatInt(v, 8)
	pad := digits - len(s)
	for i := range pad {
		dst[i] = '0'
	}
	copy(dst[pad:], s)
	dst[digits] = 0
	return nil
}

// ParseOctal parses an ASCII octal field. Leading and trailing spaces and
// NULs are ignored; an all-blank field is zero. Base-256 encoded fields
// are not supported.
func ParseOctal(b []byte) (int64, error) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		return 0, fmt.Errorf("%w: base-256 numeric field", format.ErrMalformed)
	}
	s := strings.Trim(string(b), " \x00")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 8, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid octal %q", format.ErrMalformed, s)
	}
	return v, nil
}

func parseLenient(b []byte) int64 {
	v, err := ParseOctal(b)
	if err != nil {
		return 0
	}
	return v
}

func putChecksum(block []byte) {
	field := format.FieldChecksum.In(block)
	// The checksum of a 512-byte block never exceeds 6 octal digits.
	_ = PutOctal(field[:checksumDigits+1], Checksum(block)) //nolint:errcheck // bounded by 512*255
	field[checksumDigits+1] = ' '
}

// sums returns the unsigned and signed byte sums used for checksums.
func sums(block []byte) (unsigned, signed int64) {
	f := format.FieldChecksum
	for i, b := range block[:format.BlockSize] {
		if i >= f.Offset && i < f.End() {
			b = ' '
		}
		unsigned += int64(b)
		signed += int64(int8(b))
	}
	return unsigned, signed
}

func putString(dst []byte, s string) {
	copy(dst, s)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
