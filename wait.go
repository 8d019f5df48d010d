package pipeline

import (
	"fmt"
	"os"
	"syscall"
)

// CommandStatus is one command's outcome, as reported by WaitAll. Code is
// the raw OS termination status: for a normal exit this is the exit code
// shifted left by 8 (so "exit 2" reads back as 2<<8), and for a signaled
// one the signal number (with 0x80 set on a core dump); Wait's own return
// value uses a different, already-translated encoding, since the two have
// historically disagreed and this port keeps both conventions.
type CommandStatus struct {
	Name string
	Code int
	Err  error // non-nil for an abnormal exit: signaled, core dumped, or never started
}

// Wait blocks until every command in the pipeline has finished, then
// returns the last command's exit code translated the way the shell's "$?"
// would be: 0-255 for a normal exit, 128+signal for a command killed by a
// signal. A command that died of SIGPIPE is treated as a clean exit. A
// command that died of SIGINT or SIGQUIT causes Wait to re-raise that
// signal against the host process after every command has been reaped and
// signal dispositions restored, the same way system(3) behaves.
//
// Wait may only be called once, while the pipeline is Started.
func (p *Pipeline) Wait() (int, error) {
	statuses, err := p.wait()
	if err != nil {
		return 0, err
	}
	return statuses[len(statuses)-1].code, nil
}

// WaitAll is like Wait but returns every command's status, and its own
// return code is 127 if any command exited non-zero or was killed by a
// signal other than SIGPIPE (rather than just the last one), and 0
// otherwise.
func (p *Pipeline) WaitAll() ([]CommandStatus, int, error) {
	statuses, err := p.wait()
	if err != nil {
		return nil, 0, err
	}
	out := make([]CommandStatus, len(statuses))
	code := 0
	for i, st := range statuses {
		out[i] = CommandStatus{Name: st.name, Code: st.rawCode, Err: st.abnormal}
		if st.code != 0 {
			code = 127
		}
	}
	return out, code, nil
}

func (p *Pipeline) wait() ([]*status, error) {
	p.mu.Lock()
	if p.state != stateStarted {
		p.mu.Unlock()
		return nil, misusef("Pipeline.Wait called in state %v, want Started", p.state)
	}
	for i := range p.statuses {
		for p.statuses[i] == nil {
			p.cond.Wait()
		}
	}
	statuses := append([]*status(nil), p.statuses...)
	p.state = stateWaited
	p.mu.Unlock()

	if p.ignoreSignals {
		restoreInteractiveSignals()
	}

	var deferredSig syscall.Signal
	for i, c := range p.commands {
		invokeFree(c)
		if statuses[i].abnormal != nil {
			fmt.Fprintln(os.Stderr, statuses[i].abnormal)
		}
		if statuses[i].raiseSig != 0 {
			deferredSig = statuses[i].raiseSig
		}
	}
	if deferredSig != 0 {
		raiseSignal(deferredSig)
	}
	return statuses, nil
}

// invokeFree calls the parent-side free callback for c, and recurses into
// a Sequence's children, so a Function command nested anywhere inside a
// Sequence still gets its free callback invoked once Wait collects the
// Sequence's own single exit status.
func invokeFree(c *Command) {
	switch c.kind {
	case kindFunction:
		if c.fn.free != nil {
			c.fn.free(c.fnState)
		}
	case kindSequence:
		for _, child := range c.children {
			invokeFree(child)
		}
	}
}
