package format

// EntryType identifies the kind of an archive entry.
type EntryType uint8

const (
	TypeFile EntryType = iota
	TypeDirectory
)

// On-disk typeflag values.
const (
	FlagFile      byte = '0'
	FlagFileOld   byte = 0
	FlagDirectory byte = '5'
)

// String returns the human-readable name of the entry type.
func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// DefaultMode returns the permission bits used when an entry sets none.
func (t EntryType) DefaultMode() int64 {
	if t == TypeDirectory {
		return 0o775
	}
	return 0o664
}

// Flag returns the typeflag byte written for the entry type.
func (t EntryType) Flag() byte {
	if t == TypeDirectory {
		return FlagDirectory
	}
	return FlagFile
}

// TypeFromFlag maps a typeflag byte to an entry type.
// Every value other than '5' reads as a regular file.
func TypeFromFlag(flag byte) EntryType {
	if flag == FlagDirectory {
		return TypeDirectory
	}
	return TypeFile
}

// KnownFlag reports whether flag is one of the typeflags this format writes
// or the pre-POSIX NUL regular file flag.
func KnownFlag(flag byte) bool {
	switch flag {
	case FlagFile, FlagFileOld, FlagDirectory:
		return true
	default:
		return false
	}
}
