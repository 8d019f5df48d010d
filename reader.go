package pipeline

import (
	"bytes"
	"io"
)

// peekGrowSize is how much the peek buffer grows by at a time when more
// data is needed and none is immediately available.
const peekGrowSize = 4096

// readable reports whether p's output can be Peek'd/Read, and returns the
// file descriptor to read it from.
func (p *Pipeline) readable() (*outfdHandle, error) {
	if p.wantOut.kind != WantLibraryPipe {
		return nil, misusef("Pipeline output is not readable; call SetWantOut(WantLibraryPipe) first")
	}
	if p.outfd == nil {
		return nil, misusef("Pipeline output not available; call Start first")
	}
	return &outfdHandle{p}, nil
}

// outfdHandle is a tiny indirection so reader.go's helpers can read p.outfd
// without re-deriving the eof bookkeeping at each call site.
type outfdHandle struct{ p *Pipeline }

func (h *outfdHandle) fill(n int) error {
	p := h.p
	for p.peekOffset < n {
		if cap(p.peekBuf)-len(p.peekBuf) < peekGrowSize {
			grown := make([]byte, len(p.peekBuf), len(p.peekBuf)+peekGrowSize)
			copy(grown, p.peekBuf)
			p.peekBuf = grown
		}
		buf := p.peekBuf[len(p.peekBuf):min(len(p.peekBuf)+peekGrowSize, cap(p.peekBuf))]
		read, err := p.outfd.Read(buf)
		if read > 0 {
			p.peekBuf = p.peekBuf[:len(p.peekBuf)+read]
			p.peekOffset += read
		}
		if err != nil {
			return err
		}
		if read == 0 {
			return io.EOF
		}
	}
	return nil
}

// unread returns the slice of peekBuf holding currently buffered, not yet
// consumed, bytes.
func (p *Pipeline) unread() []byte {
	return p.peekBuf[len(p.peekBuf)-p.peekOffset:]
}

// Peek returns up to n bytes of the pipeline's output without consuming
// them: a subsequent Peek or Read may see the same bytes again. It returns
// fewer than n bytes, with err set to io.EOF, if the pipeline's output
// ends first.
func (p *Pipeline) Peek(n int) ([]byte, error) {
	h, err := p.readable()
	if err != nil {
		return nil, err
	}
	fillErr := h.fill(n)
	avail := p.unread()
	if len(avail) > n {
		avail = avail[:n]
	}
	if fillErr != nil && len(avail) < n {
		return avail, fillErr
	}
	return avail, nil
}

// PeekSize returns the number of bytes currently buffered by Peek without
// performing any I/O.
func (p *Pipeline) PeekSize() int {
	return p.peekOffset
}

// PeekSkip discards n buffered bytes, as if they had been Read. It panics
// if n exceeds the number of bytes currently buffered; call Peek(n) first
// to ensure enough data is buffered.
func (p *Pipeline) PeekSkip(n int) {
	if n > p.peekOffset {
		panic(misusef("PeekSkip(%d): only %d bytes buffered", n, p.peekOffset))
	}
	p.peekOffset -= n
	if p.peekOffset == 0 {
		p.peekBuf = p.peekBuf[:0]
	}
}

// Read implements io.Reader over the pipeline's output, serving already
// buffered (Peek'd) bytes first.
func (p *Pipeline) Read(buf []byte) (int, error) {
	h, err := p.readable()
	if err != nil {
		return 0, err
	}
	if p.peekOffset == 0 {
		return h.p.outfd.Read(buf)
	}
	avail := p.unread()
	n := copy(buf, avail)
	p.PeekSkip(n)
	return n, nil
}

// PeekLine returns the next line of the pipeline's output, including its
// trailing newline if present, without consuming it. At EOF with no
// trailing newline, it returns whatever remains. It returns a zero-length
// slice and io.EOF once nothing is left.
func (p *Pipeline) PeekLine() ([]byte, error) {
	h, err := p.readable()
	if err != nil {
		return nil, err
	}
	for {
		if idx := bytes.IndexByte(p.unread(), '\n'); idx >= 0 {
			return p.unread()[:idx+1], nil
		}
		// Ask for one more byte, so fill does a single read of up to
		// peekGrowSize bytes and the new data is searched before reading again.
		fillErr := h.fill(p.peekOffset + 1)
		if fillErr == io.EOF {
			if p.peekOffset == 0 {
				return nil, io.EOF
			}
			return p.unread(), nil
		}
		if fillErr != nil {
			return nil, fillErr
		}
	}
}

// ReadLine consumes and returns the next line the way PeekLine reports it.
func (p *Pipeline) ReadLine() ([]byte, error) {
	line, err := p.PeekLine()
	if len(line) == 0 {
		return nil, err
	}
	out := append([]byte(nil), line...)
	p.PeekSkip(len(line))
	return out, nil
}
