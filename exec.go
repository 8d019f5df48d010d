package pipeline

import (
	"os"
	"os/exec"
	"sync"

	"github.com/Distrotech/libpipeline/internal/lookpath"
)

// resolveEnvOps applies ops, in order, on top of base: ClearAll resets the
// accumulator to empty, Set and Unset add or remove one variable.
func resolveEnvOps(base map[string]string, ops []envOp) map[string]string {
	vars := make(map[string]string, len(base))
	for k, v := range base {
		vars[k] = v
	}
	for _, op := range ops {
		switch op.kind {
		case envClearAll:
			vars = make(map[string]string)
		case envSet:
			vars[op.name] = op.value
		case envUnset:
			delete(vars, op.name)
		}
	}
	return vars
}

func envMapToSlice(vars map[string]string) []string {
	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	return out
}

func envSliceToMap(env []string) map[string]string {
	vars := make(map[string]string, len(env))
	for _, kv := range env {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				vars[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return vars
}

var (
	hostExecOnce sync.Once
	hostExecPath string
	hostExecErr  error
)

// hostExecutable returns the path to re-exec in order to run this same
// binary again: os.Executable's answer, or, if that fails, os.Args[0]
// resolved against PATH the same way the shell that invoked us would have,
// matching gosh's executablePath fallback.
func hostExecutable() (string, error) {
	hostExecOnce.Do(func() {
		if p, err := os.Executable(); err == nil {
			hostExecPath = p
			return
		}
		hostExecPath, hostExecErr = lookpath.Look(envSliceToMap(os.Environ()), os.Args[0])
	})
	return hostExecPath, hostExecErr
}

// buildExecCmd resolves spec into a ready-to-Start *exec.Cmd against base:
// a Process spec execs the named binary directly (resolved via PATH in
// base); a Function or Sequence spec re-execs the host binary with its
// childSpec encoded into envInvocation. Stdin/Stdout/Stderr and ExtraFiles
// are left for the caller to fill in.
func buildExecCmd(spec childSpec, base map[string]string) (*exec.Cmd, error) {
	vars := resolveEnvOps(base, spec.EnvOps)
	switch spec.Kind {
	case kindProcess:
		path, err := lookpath.Look(vars, spec.Argv[0])
		if err != nil {
			return nil, err
		}
		cmd := &exec.Cmd{Path: path, Args: append([]string{path}, spec.Argv[1:]...)}
		cmd.Env = envMapToSlice(vars)
		return cmd, nil
	case kindFunction, kindSequence:
		exe, err := hostExecutable()
		if err != nil {
			return nil, err
		}
		encoded, err := encodeChildSpec(spec)
		if err != nil {
			return nil, err
		}
		vars[envInvocation] = encoded
		cmd := &exec.Cmd{Path: exe, Args: []string{exe}}
		cmd.Env = envMapToSlice(vars)
		return cmd, nil
	default:
		panic(misusef("unknown command kind %d", spec.Kind))
	}
}
