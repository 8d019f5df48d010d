package pipeline

import (
	"fmt"
	"os"
	"os/exec"
)

// Start builds the pipes between p's commands, applies its Want*
// configuration to the two open ends, and launches every command. It
// returns once all commands have been started (or failed to start);
// per-command exec failures are recorded as statuses and surface through
// Wait, not as an error from Start. Start returns an error for failures
// in the plumbing itself (creating a pipe, or opening a
// SetWantInFile/SetWantOutFile path), and a misuse error if p is not
// Built or has no commands.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateBuilt {
		return misusef("Pipeline.Start called in state %v, want Built", p.state)
	}
	n := len(p.commands)
	if n == 0 {
		return misusef("Pipeline.Start called with no commands")
	}

	stdins := make([]*os.File, n)
	stdouts := make([]*os.File, n)
	var toClose []*os.File // parent-side fds to close once every child has started

	switch p.wantIn.kind {
	case WantInherit:
		stdins[0] = os.Stdin
	case WantCallerFile:
		stdins[0] = p.wantIn.file
	case WantFile:
		f, err := os.Open(p.wantIn.path)
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		stdins[0] = f
		toClose = append(toClose, f)
	case WantLibraryPipe:
		r, w, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		stdins[0] = r
		p.infd = w
		toClose = append(toClose, r)
	}

	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			closeAll(toClose)
			return fmt.Errorf("pipeline: %w", err)
		}
		stdouts[i] = w
		stdins[i+1] = r
		toClose = append(toClose, r, w)
	}

	switch p.wantOut.kind {
	case WantInherit:
		stdouts[n-1] = os.Stdout
	case WantCallerFile:
		stdouts[n-1] = p.wantOut.file
	case WantFile:
		f, err := os.OpenFile(p.wantOut.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
		if err != nil {
			closeAll(toClose)
			return fmt.Errorf("pipeline: %w", err)
		}
		stdouts[n-1] = f
		p.outfd = f // kept open until Free or Close
	case WantLibraryPipe:
		r, w, err := os.Pipe()
		if err != nil {
			closeAll(toClose)
			return fmt.Errorf("pipeline: %w", err)
		}
		stdouts[n-1] = w
		p.outfd = r
		toClose = append(toClose, w)
	}

	base := envSliceToMap(os.Environ())
	p.pids = make([]int, n)
	p.statuses = make([]*status, n)
	p.procs = make([]*os.Process, n)
	cmds := make([]*exec.Cmd, n)

	for i, c := range p.commands {
		spec := toChildSpec(c)
		cmd, err := buildExecCmd(spec, base)
		if err != nil {
			p.statuses[i] = execFailedStatus(c.Name, err)
			p.pids[i] = -1
			continue
		}
		cmd.Stdin = stdins[i]
		cmd.Stdout = stdouts[i]
		if c.DiscardErr {
			devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
			if err == nil {
				cmd.Stderr = devNull
				toClose = append(toClose, devNull)
			}
		} else {
			cmd.Stderr = os.Stderr
		}
		if err := cmd.Start(); err != nil {
			p.statuses[i] = execFailedStatus(c.Name, err)
			p.pids[i] = -1
			continue
		}
		applyNice(cmd.Process, c.Nice)
		p.pids[i] = cmd.Process.Pid
		p.procs[i] = cmd.Process
		cmds[i] = cmd
	}

	closeAll(toClose)

	if p.ignoreSignals {
		ignoreInteractiveSignals()
	}

	for i, cmd := range cmds {
		if cmd == nil {
			continue // this slot already holds a synthesized exec-failure status
		}
		i, cmd := i, cmd
		name := p.commands[i].Name
		go func() {
			waitErr := cmd.Wait()
			st := classifyWaitErr(name, waitErr, cmd.ProcessState)
			p.mu.Lock()
			p.statuses[i] = st
			p.cond.Broadcast()
			p.mu.Unlock()
		}()
	}

	p.state = stateStarted
	return nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}
