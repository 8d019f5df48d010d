package pipeline

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// pumpChunkSize is how much of a source's output Pump tries to hold
// buffered at once before forwarding it to the source's sinks.
const pumpChunkSize = 64 * 1024

// Pump drives data from each of sources' output to the sinks Connect
// attached to it, until every source reaches EOF and every sink has been
// sent everything (or given up on, if a sink stops reading). Each source
// is pumped concurrently; a slow or stalled sink holds back the other
// sinks fed from the same source, and that source is read no further than
// about pumpChunkSize bytes ahead of its slowest live sink, but no other
// source passed to the same Pump call is held back.
//
// The original library drives this with a single select() loop across
// every fd at once; here each source gets its own goroutine instead; a
// sink that can't keep up is handled with a non-blocking write and a
// short poll rather than a global readiness set, which is the ordinary Go
// substitute for one thread multiplexing many fds by hand.
func Pump(sources ...*Pipeline) error {
	if len(sources) == 0 {
		return nil
	}
	var wg sync.WaitGroup
	errs := make([]error, len(sources))
	for i, src := range sources {
		if src.outfd == nil {
			return misusef("Pump: pipeline has no readable output; call SetWantOut(WantLibraryPipe) and Start first")
		}
		if len(src.sinks) == 0 {
			return misusef("Pump: pipeline has no sinks; call Connect first")
		}
		wg.Add(1)
		go func(i int, src *Pipeline) {
			defer wg.Done()
			errs[i] = pumpSource(src)
		}(i, src)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func pumpSource(src *Pipeline) error {
	sinks := src.sinks
	done := make([]bool, len(sinks))
	positions := make([]int, len(sinks))

	// firstErr is the first non-EPIPE write error recorded against any
	// sink; a sink that dies of EPIPE just closes silently (its reader
	// simply stopped wanting more), but anything else (EBADF, ENOSPC, ...)
	// is a real failure the source's own teardown must report once the
	// source reaches EOF.
	var firstErr error
	recordErr := func(i int, err error) {
		if err == unix.EPIPE || firstErr != nil {
			return
		}
		firstErr = fmt.Errorf("pipeline: pump: sink %d: %w", i, err)
	}

	closeSink := func(i int) {
		if done[i] {
			return
		}
		done[i] = true
		sinks[i].mu.Lock()
		if sinks[i].infd != nil {
			sinks[i].infd.Close()
			sinks[i].infd = nil
		}
		sinks[i].mu.Unlock()
	}

	for {
		anyLive := false
		for _, d := range done {
			if !d {
				anyLive = true
				break
			}
		}

		chunk, rerr := src.Peek(pumpChunkSize)
		if len(chunk) == 0 {
			if rerr == io.EOF {
				for i := range sinks {
					closeSink(i)
				}
				return firstErr
			}
			return rerr
		}
		if !anyLive {
			// Every sink gave up; keep draining the source so its own
			// commands don't block forever writing into a full pipe, but
			// throw the data away.
			src.PeekSkip(len(chunk))
			continue
		}

		minpos := -1
		progressed := false
		for i, sink := range sinks {
			if done[i] {
				continue
			}
			if positions[i] < len(chunk) {
				n, err := writeNonblockingPartial(sink.infd, chunk[positions[i]:])
				if err != nil {
					recordErr(i, err)
					closeSink(i)
					continue
				}
				if n > 0 {
					progressed = true
				}
				positions[i] += n
			}
			if !done[i] && (minpos == -1 || positions[i] < minpos) {
				minpos = positions[i]
			}
		}
		if minpos == -1 {
			minpos = len(chunk)
		}
		if minpos > 0 {
			src.PeekSkip(minpos)
			for i := range positions {
				positions[i] -= minpos
			}
		} else if !progressed {
			pollWritable(sinks, done)
		}
	}
}

// writeNonblockingPartial attempts one non-blocking write of data to f,
// returning the number of bytes actually written. EAGAIN and EINTR are
// reported as zero bytes written with a nil error, meaning "try later".
// Any other error, including EPIPE, is returned to the caller to record.
func writeNonblockingPartial(f *os.File, data []byte) (int, error) {
	fd := int(f.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return 0, err
	}
	n, err := unix.Write(fd, data)
	if err == nil {
		return n, nil
	}
	if err == unix.EAGAIN || err == unix.EINTR {
		return 0, nil
	}
	return n, err
}

// pollWritable blocks briefly until at least one of sinks' library pipes
// is ready for another write, or the timeout passes, so pumpSource's loop
// doesn't spin when every live sink's pipe is momentarily full.
func pollWritable(sinks []*Pipeline, done []bool) {
	var fds []unix.PollFd
	for i, sink := range sinks {
		if done[i] {
			continue
		}
		fds = append(fds, unix.PollFd{Fd: int32(sink.infd.Fd()), Events: unix.POLLOUT})
	}
	if len(fds) == 0 {
		return
	}
	unix.Poll(fds, 50)
}
