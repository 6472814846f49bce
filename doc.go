// Package ustar reads and writes POSIX ustar tape archives entirely in memory.
//
// An archive is a sequence of 512-byte header blocks, each followed by the
// entry's content padded to the next 512-byte boundary. The whole archive is
// padded to a multiple of 10240 bytes (one record of 20 blocks).
//
// # Writing
//
// A [Writer] accumulates entries and serializes them in insertion order.
// Content may be given up front or deferred; deferred sources are resolved
// concurrently when [Writer.Write] runs:
//
//	w := ustar.NewWriter()
//	if err := w.AddFile("hello.txt", ustar.Text("hello")); err != nil {
//	    return err
//	}
//	if err := w.AddFolder("assets"); err != nil {
//	    return err
//	}
//	archive, err := w.Write(ctx)
//	if err != nil {
//	    return err
//	}
//	data := archive.Bytes() // application/x-tar
//
// # Reading
//
// [Load] scans a buffer into an ordered index of [FileInfo] values. Content is
// sliced from the original buffer on request:
//
//	r, err := ustar.Load(data)
//	if err != nil {
//	    return err
//	}
//	text, err := r.TextFile("hello.txt")
//
// # Limitations
//
// Names are stored in the 100-byte name field and truncated beyond it; GNU
// long names and PAX extended headers are not produced or interpreted.
// Links, compression and streaming are not supported, and content sizes are
// limited to 11 octal digits (8 GiB).
package ustar
