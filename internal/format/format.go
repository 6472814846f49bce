// Package format defines the USTAR header layout shared by the reader and writer.
package format

const (
	// BlockSize is the size of a header block and the content alignment unit.
	BlockSize = 512

	// RecordSize is the unit the whole archive is padded to (20 blocks).
	RecordSize = BlockSize * 20

	// Magic and Version identify a POSIX ustar header.
	Magic   = "ustar\x00"
	Version = "00"

	// MaxSize is the largest content size representable in 11 octal digits.
	MaxSize = 1<<33 - 1

	// MaxID is the largest mode, uid or gid representable in 7 octal digits.
	MaxID = 1<<21 - 1

	// MaxModTime is the largest mtime (seconds) representable in 11 octal digits.
	MaxModTime = 1<<33 - 1
)

// Field is a fixed byte range within a header block.
type Field struct {
	Offset int
	Size   int
}

// End returns the exclusive end offset of the field.
func (f Field) End() int {
	return f.Offset + f.Size
}

// In returns the field's bytes within block. The block must be at least
// BlockSize bytes long.
func (f Field) In(block []byte) []byte {
	return block[f.Offset:f.End():f.End()]
}

// Header field offsets. These are normative; standard tar tools expect
// them byte for byte.
var (
	FieldName     = Field{Offset: 0, Size: 100}
	FieldMode     = Field{Offset: 100, Size: 8}
	FieldUID      = Field{Offset: 108, Size: 8}
	FieldGID      = Field{Offset: 116, Size: 8}
	FieldSize     = Field{Offset: 124, Size: 12}
	FieldModTime  = Field{Offset: 136, Size: 12}
	FieldChecksum = Field{Offset: 148, Size: 8}
	FieldTypeflag = Field{Offset: 156, Size: 1}
	FieldMagic    = Field{Offset: 257, Size: 6}
	FieldVersion  = Field{Offset: 263, Size: 2}
	FieldUser     = Field{Offset: 265, Size: 32}
	FieldGroup    = Field{Offset: 297, Size: 32}
)
