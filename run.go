package pipeline

// Run is a convenience wrapper around Start followed by Wait.
func (p *Pipeline) Run() (int, error) {
	if err := p.Start(); err != nil {
		return 0, err
	}
	return p.Wait()
}

// Free releases any resources Start acquired that Wait didn't already
// hand back to the caller (the library end of a WantLibraryPipe input, and
// a WantFile output's handle). It is safe to call Free more than once, and
// safe to call it on a Pipeline that was never Started. Callers that use
// SetWantOutFd/SetWantOut(WantLibraryPipe) to Read the pipeline's output
// are responsible for closing it themselves (via Close) when done; Free
// leaves a library-pipe output's read end open for exactly that reason.
func (p *Pipeline) Free() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateFreed {
		return nil
	}
	if p.infd != nil {
		p.infd.Close()
		p.infd = nil
	}
	if p.wantOut.kind == WantFile && p.outfd != nil {
		p.outfd.Close()
		p.outfd = nil
	}
	p.state = stateFreed
	return nil
}

// Close closes the pipeline's output handle, if any (the read end of a
// library-pipe output, or a WantFile output), signaling EOF to any
// downstream reader of a library pipe. Call it once the caller (or Pump) is done
// reading the pipeline's output.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outfd == nil {
		return nil
	}
	err := p.outfd.Close()
	p.outfd = nil
	return err
}
