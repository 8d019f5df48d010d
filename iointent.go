package pipeline

import "os"

// WantKind distinguishes the ways a Pipeline's stdin/stdout can be wired.
type WantKind int

const (
	// WantInherit leaves the end connected to whatever the host's own
	// stdin/stdout is (or, for an internal connection, unconnected).
	WantInherit WantKind = iota
	// WantCallerFile uses a caller-supplied *os.File directly.
	WantCallerFile
	// WantLibraryPipe has Start create an os.Pipe and keep the library
	// end for the host to Read/Peek/Pump, or to feed via Pipeline.Stdin.
	WantLibraryPipe
	// WantFile opens a path in the parent when Start runs: for input it is
	// opened for reading and becomes the first command's stdin, for output
	// it is opened for writing and becomes the last command's stdout (for
	// historical reasons matching the originating C library).
	WantFile
)

// want describes one end (input or output) of a Pipeline.
type want struct {
	kind WantKind
	file *os.File // WantCallerFile
	path string   // WantFile
}
