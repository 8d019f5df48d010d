package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// errMisuse reports a programming error: a Command or Pipeline method was
// called in a state that the API contract forbids. Unlike the other error
// kinds in this package, misuse errors are meant to be fixed in the
// caller, not handled at runtime.
var errMisuse = errors.New("pipeline: misuse")

func misusef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errMisuse, fmt.Sprintf(format, args...))
}

// envOpKind distinguishes the three ways a Command can alter its child's
// environment. ClearAll is a sentinel recorded in the ordered op list: it
// resets the inherited environment before any ops that follow it are
// applied.
type envOpKind int

const (
	envSet envOpKind = iota
	envUnset
	envClearAll
)

type envOp struct {
	kind  envOpKind
	name  string
	value string
}

// commandKind distinguishes the three Command variants.
type commandKind int

const (
	kindProcess commandKind = iota
	kindFunction
	kindSequence
)

// FuncBody is the work performed by a Function command's child process. It
// receives the decoded state and runs to completion; returning nil ends the
// child with exit status 0, and returning an error prints it to stderr and
// ends the child with exit status 1, unless the function itself calls
// os.Exit.
type FuncBody func(state interface{}) error

// FreeFunc releases resources associated with a Function command's state.
// It is called once in the child, immediately after the body returns, and
// once more in the parent after Pipeline.Wait collects the command's exit
// status.
type FreeFunc func(state interface{})

// Command describes a single node of a Pipeline: an external process, an
// in-process function, or a sequence of sub-commands run with logical-AND
// semantics. A Command is mutable until it is attached to a Pipeline, and
// must not be mutated afterwards; use Dup to make an independent copy.
type Command struct {
	// Name identifies the command for diagnostics; for a Process command
	// it also determines the default argv[0].
	Name string
	// Nice is the niceness delta applied to the child (best-effort).
	Nice int
	// DiscardErr, if true, redirects the child's stderr to the
	// equivalent of /dev/null.
	DiscardErr bool

	kind   commandKind
	envOps []envOp

	// Process fields.
	argv []string

	// Function fields.
	fn      *Func
	fnState interface{}

	// Sequence fields.
	children []*Command
}

// NewCommand returns a new Process command that will invoke the named
// executable. argv[0] is initialized to the base name of name; use Arg or
// ArgStr to append further arguments.
func NewCommand(name string) *Command {
	c := &Command{Name: name, kind: kindProcess}
	c.argv = append(c.argv, filepath.Base(name))
	return c
}

// NewCommandArgs is a convenience wrapper around NewCommand that appends
// each of args via Arg.
func NewCommandArgs(name string, args ...string) *Command {
	c := NewCommand(name)
	for _, a := range args {
		c.Arg(a)
	}
	return c
}

// NewFunctionCommand returns a new Function command. f must have been
// obtained from RegisterFunc. state is passed to f's body, and to f's free
// callback if one was registered, and must be encodable by encoding/gob,
// since it crosses the re-exec boundary into the child process.
func NewFunctionCommand(name string, f *Func, state interface{}) *Command {
	return &Command{Name: name, kind: kindFunction, fn: f, fnState: state}
}

// NewSequenceCommand returns a new Sequence command that runs each of
// children in order in a single child process, stopping at the first
// non-zero exit (logical AND).
func NewSequenceCommand(name string, children ...*Command) *Command {
	return &Command{Name: name, kind: kindSequence, children: append([]*Command(nil), children...)}
}

// newPassthrough returns the implicit "cat"-equivalent function command
// used to plumb a zero-command sink in Connect.
func newPassthrough() *Command {
	return NewFunctionCommand("cat", passthroughFunc, nil)
}

// Arg appends an argument to a Process command. It is a misuse error to
// call Arg on a Function or Sequence command.
func (c *Command) Arg(s string) *Command {
	if c.kind != kindProcess {
		panic(misusef("Arg called on non-process command %q", c.Name))
	}
	c.argv = append(c.argv, s)
	return c
}

// ArgStr tokenizes s (see ArgsFromString) and appends each resulting word
// as an argument. Panics with a *ConfigDirectiveError if s is malformed.
func (c *Command) ArgStr(s string) *Command {
	words, err := ArgsFromString(s)
	if err != nil {
		panic(err)
	}
	for _, w := range words {
		c.Arg(w)
	}
	return c
}

// Argv returns the Process command's argument vector, including argv[0].
// It panics if called on a non-process command.
func (c *Command) Argv() []string {
	if c.kind != kindProcess {
		panic(misusef("Argv called on non-process command %q", c.Name))
	}
	return append([]string(nil), c.argv...)
}

// SetEnv records that name=value should be set in the child's environment.
func (c *Command) SetEnv(name, value string) *Command {
	c.envOps = append(c.envOps, envOp{kind: envSet, name: name, value: value})
	return c
}

// UnsetEnv records that name should be removed from the child's
// environment.
func (c *Command) UnsetEnv(name string) *Command {
	c.envOps = append(c.envOps, envOp{kind: envUnset, name: name})
	return c
}

// ClearEnv records that the inherited environment should be discarded
// before any subsequent SetEnv/UnsetEnv calls are applied.
func (c *Command) ClearEnv() *Command {
	c.envOps = append(c.envOps, envOp{kind: envClearAll})
	return c
}

// Dup returns a deep copy of c, including recursively copied Sequence
// children. The copy is independent of c and may be attached to a
// different Pipeline.
func (c *Command) Dup() *Command {
	dup := &Command{
		Name:       c.Name,
		Nice:       c.Nice,
		DiscardErr: c.DiscardErr,
		kind:       c.kind,
		envOps:     append([]envOp(nil), c.envOps...),
		argv:       append([]string(nil), c.argv...),
		fn:         c.fn,
		fnState:    c.fnState,
	}
	for _, child := range c.children {
		dup.children = append(dup.children, child.Dup())
	}
	return dup
}

// String renders c the way it would appear in a shell pipeline: env
// assignments, then name, then arguments for a Process command; a
// parenthesized "&&"-joined list for a Sequence command.
func (c *Command) String() string {
	var b strings.Builder
	for _, op := range c.envOps {
		switch op.kind {
		case envClearAll:
			b.WriteString("(clear-env) ")
		case envSet:
			fmt.Fprintf(&b, "%s=%s ", op.name, op.value)
		case envUnset:
			fmt.Fprintf(&b, "-%s ", op.name)
		}
	}
	switch c.kind {
	case kindProcess:
		b.WriteString(c.Name)
		if len(c.argv) > 1 {
			b.WriteString(" ")
			b.WriteString(strings.Join(c.argv[1:], " "))
		}
	case kindFunction:
		b.WriteString(c.Name)
	case kindSequence:
		b.WriteString("(")
		parts := make([]string, len(c.children))
		for i, child := range c.children {
			parts[i] = child.String()
		}
		b.WriteString(strings.Join(parts, " && "))
		b.WriteString(")")
	}
	return b.String()
}
