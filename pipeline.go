package pipeline

import (
	"os"
	"strings"
	"sync"
)

// pipelineState tracks where a Pipeline is in its lifecycle.
type pipelineState int

const (
	stateBuilt pipelineState = iota
	stateStarted
	stateWaited
	stateFreed
)

// Pipeline is an ordered sequence of Commands connected end to end: the
// stdout of each command feeds the stdin of the next. A Pipeline is built
// up with Command/CommandArgs/CommandArgStr and the Want* setters, then
// run with Start and Wait (or Run, which is both).
//
// Pipeline is not safe for concurrent use by multiple goroutines, except
// where noted (Pump accepts a set of Pipelines and drives them together).
type Pipeline struct {
	mu sync.Mutex // guards the fields below; Start's per-command waiter goroutines take it to record statuses

	commands []*Command
	state    pipelineState

	wantIn  want
	wantOut want

	// ignoreSignals mirrors the C library's default of ignoring SIGINT
	// and SIGQUIT for the duration the pipeline's children are running,
	// like system(3).
	ignoreSignals bool

	// populated by Start.
	pids     []int
	statuses []*status // nil until collected; see reaper.go
	procs    []*os.Process
	infd     *os.File // present iff wantIn.kind == WantLibraryPipe
	outfd    *os.File // present iff wantOut.kind is WantLibraryPipe or WantFile

	// source is a non-owning back-reference set by Connect; a Pipeline
	// with a non-nil source reads its stdin from that Pipeline's stdout
	// via Pump rather than from its own wantIn.
	source *Pipeline

	// sinks lists the Pipelines Connect has attached to this one as a
	// Pump source; Pump fans this pipeline's output out to each of them.
	sinks []*Pipeline

	// reader state; see reader.go.
	peekBuf    []byte
	peekOffset int // bytes at the tail of peekBuf not yet consumed by Read
	lineCache  []byte

	// cond is broadcast whenever a status is recorded by the reaper.
	cond *sync.Cond
}

// NewPipeline returns an empty Pipeline with default I/O (inherit stdin
// and stdout from the host) and signal handling enabled.
func NewPipeline() *Pipeline {
	p := &Pipeline{ignoreSignals: true}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// NewPipelineCommands returns a new Pipeline containing cmds in order.
func NewPipelineCommands(cmds ...*Command) *Pipeline {
	p := NewPipeline()
	for _, c := range cmds {
		p.Command(c)
	}
	return p
}

// Command appends c to the pipeline. Must be called before Start.
func (p *Pipeline) Command(c *Command) *Pipeline {
	p.mustBuilt("Command")
	p.commands = append(p.commands, c)
	return p
}

// CommandArgs appends a new Process command built from name and args.
func (p *Pipeline) CommandArgs(name string, args ...string) *Pipeline {
	return p.Command(NewCommandArgs(name, args...))
}

// CommandArgStr appends a new Process command built by tokenizing argstr
// with ArgsFromString.
func (p *Pipeline) CommandArgStr(argstr string) *Pipeline {
	words, err := ArgsFromString(argstr)
	if err != nil {
		panic(err)
	}
	if len(words) == 0 {
		panic(misusef("CommandArgStr: empty directive %q", argstr))
	}
	return p.Command(NewCommandArgs(words[0], words[1:]...))
}

// Pids returns a copy of the pids Start recorded, one per command in
// order. A command that never produced a real process (an exec failure;
// see Wait) is reported as -1. Only valid once Started.
func (p *Pipeline) Pids() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.pids...)
}

// Commands returns the pipeline's commands in order.
func (p *Pipeline) Commands() []*Command {
	return append([]*Command(nil), p.commands...)
}

// Join appends other's commands to p. Both pipelines must still be Built.
func (p *Pipeline) Join(other *Pipeline) *Pipeline {
	p.mustBuilt("Join")
	other.mustBuilt("Join")
	p.commands = append(p.commands, other.commands...)
	return p
}

// SetWantIn configures the pipeline's input. Only valid while Built.
func (p *Pipeline) SetWantIn(kind WantKind) *Pipeline {
	p.mustBuilt("SetWantIn")
	p.wantIn = want{kind: kind}
	return p
}

// SetWantInFile configures the pipeline to read its input from path,
// which Start opens in the parent and hands to the first command as stdin.
func (p *Pipeline) SetWantInFile(path string) *Pipeline {
	p.mustBuilt("SetWantInFile")
	p.wantIn = want{kind: WantFile, path: path}
	return p
}

// SetWantInFd configures the pipeline to read its input from an
// already-open file, e.g. one obtained from another Pipeline or from
// os.Open. SetWantIn, SetWantInFile and SetWantInFd all replace the same
// input configuration, so whichever of them was called last wins; see the
// Open Questions note in DESIGN.md.
func (p *Pipeline) SetWantInFd(f *os.File) *Pipeline {
	p.mustBuilt("SetWantInFd")
	p.wantIn = want{kind: WantCallerFile, file: f}
	return p
}

// SetWantOut configures the pipeline's output. Only valid while Built.
func (p *Pipeline) SetWantOut(kind WantKind) *Pipeline {
	p.mustBuilt("SetWantOut")
	p.wantOut = want{kind: kind}
	return p
}

// SetWantOutFile configures the pipeline's output to be a path, opened for
// writing in the parent (not the child) before Start forks any children.
func (p *Pipeline) SetWantOutFile(path string) *Pipeline {
	p.mustBuilt("SetWantOutFile")
	p.wantOut = want{kind: WantFile, path: path}
	return p
}

// SetWantOutFd configures the pipeline's output to be an already-open
// file.
func (p *Pipeline) SetWantOutFd(f *os.File) *Pipeline {
	p.mustBuilt("SetWantOutFd")
	p.wantOut = want{kind: WantCallerFile, file: f}
	return p
}

// SetIgnoreSignals controls whether Start installs SIG_IGN for SIGINT and
// SIGQUIT for the duration of the pipeline's children, restoring the
// previous disposition in Wait. Defaults to true.
func (p *Pipeline) SetIgnoreSignals(ignore bool) *Pipeline {
	p.mustBuilt("SetIgnoreSignals")
	p.ignoreSignals = ignore
	return p
}

// Connect arranges for each of sinks to read its stdin from source's
// stdout via Pump: it sets source's output and each sink's input to a
// library pipe, and records the back-reference used by Pump to find
// sources for its sinks. Every sink with zero commands has an implicit
// pass-through command inserted, since a pipe with nowhere to read from
// cannot otherwise be represented.
func Connect(source *Pipeline, sinks ...*Pipeline) {
	source.mustBuilt("Connect")
	source.wantOut = want{kind: WantLibraryPipe}
	for _, sink := range sinks {
		sink.mustBuilt("Connect")
		if len(sink.commands) == 0 {
			sink.commands = append(sink.commands, newPassthrough())
		}
		sink.wantIn = want{kind: WantLibraryPipe}
		sink.source = source
		source.sinks = append(source.sinks, sink)
	}
}

// Dup returns a new Built pipeline with deep copies of p's commands and
// the same I/O configuration. p must not have been Started.
func (p *Pipeline) Dup() *Pipeline {
	p.mustBuilt("Dup")
	dup := NewPipeline()
	dup.wantIn = p.wantIn
	dup.wantOut = p.wantOut
	dup.ignoreSignals = p.ignoreSignals
	for _, c := range p.commands {
		dup.commands = append(dup.commands, c.Dup())
	}
	return dup
}

// String renders the pipeline as "cmd1 | cmd2 | cmd3".
func (p *Pipeline) String() string {
	parts := make([]string, len(p.commands))
	for i, c := range p.commands {
		parts[i] = c.String()
	}
	return strings.Join(parts, " | ")
}

func (p *Pipeline) mustBuilt(method string) {
	if p.state != stateBuilt {
		panic(misusef("Pipeline.%s called in state %v, want Built", method, p.state))
	}
}

func (s pipelineState) String() string {
	switch s {
	case stateBuilt:
		return "Built"
	case stateStarted:
		return "Started"
	case stateWaited:
		return "Waited"
	case stateFreed:
		return "Freed"
	default:
		return "Unknown"
	}
}
