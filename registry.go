package pipeline

// A Function command's body cannot run via a bare fork(): the Go runtime
// does not support continuing to execute arbitrary Go code in a child
// produced by a raw fork of a multi-threaded process. Instead, a Function
// command's child is a re-exec of the host binary: argv[0] is the host's
// own executable, and an environment variable tells the re-exec'd copy
// which registered Func to invoke and with what gob-encoded state.
// InitMain must run at the top of the host's main for this to work. This
// mirrors gosh's Shell.FuncCmd/RegisterFunc mechanism.

import (
	"fmt"
	"runtime"
	"sync"
)

// envInvocation names the environment variable a re-exec'd child reads to
// learn which Func to run (or which Sequence to unfold) and with what
// state. See childspec.go and InitMain in childmain.go.
const envInvocation = "PIPELINE_GO_INVOCATION"

// Func is a body and its companion cleanup, registered with RegisterFunc
// and attached to one or more Commands via NewFunctionCommand.
type Func struct {
	handle string
	body   FuncBody
	free   FreeFunc
}

var (
	funcsMu sync.RWMutex
	funcs   = map[string]*Func{}
)

// RegisterFunc registers body (and optionally free, which may be nil) under
// name and returns a Func usable with NewFunctionCommand. It must be called
// from an init function or from package-level var initialization, so that
// the same handle is registered identically in both the parent process and
// any re-exec'd child (they are the same binary). Registering two Funcs
// under the same name from the same call site panics.
func RegisterFunc(name string, body FuncBody, free FreeFunc) *Func {
	funcsMu.Lock()
	defer funcsMu.Unlock()
	_, file, line, _ := runtime.Caller(1)
	handle := fmt.Sprintf("%s:%d:%s", file, line, name)
	if _, ok := funcs[handle]; ok {
		panic(fmt.Errorf("pipeline: %q is already registered", handle))
	}
	f := &Func{handle: handle, body: body, free: free}
	funcs[handle] = f
	return f
}

func lookupFunc(handle string) (*Func, error) {
	funcsMu.RLock()
	defer funcsMu.RUnlock()
	f, ok := funcs[handle]
	if !ok {
		return nil, fmt.Errorf("pipeline: unknown function %q (was it registered in this binary?)", handle)
	}
	return f, nil
}
