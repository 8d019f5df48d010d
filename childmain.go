package pipeline

import (
	"fmt"
	"os"
)

// InitMain must be called at the very top of a host program's main, before
// flag.Parse or anything else that reads os.Args or the environment. If
// the process was re-exec'd to run a Function or Sequence command,
// InitMain runs it to completion and calls os.Exit with its result;
// InitMain only returns in the original, non-re-exec'd process.
//
// This mirrors gosh's InitChildMain: every host of this package is both
// the "parent" binary and, potentially, its own "child" binary.
func InitMain() {
	encoded, ok := os.LookupEnv(envInvocation)
	if !ok {
		return
	}
	os.Exit(runInvocation(encoded))
}

// runInvocation decodes and executes the childSpec carried by an
// envInvocation value, returning the process exit code to use.
func runInvocation(encoded string) int {
	spec, err := decodeChildSpec(encoded)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return execFailedCode
	}
	return runChildSpec(spec)
}

// runChildSpec executes spec in the current process (for a Function) or
// by forking and waiting for a chain of grandchildren (for a Sequence),
// returning the exit code the process should report to its own parent.
func runChildSpec(spec childSpec) int {
	switch spec.Kind {
	case kindFunction:
		return runFunctionSpec(spec)
	case kindSequence:
		return runSequenceSpec(spec)
	case kindProcess:
		// buildExecCmd execs a Process spec directly, both at top level
		// and inside a Sequence, so no invocation carries one; if one
		// arrives anyway, run it as a grandchild the way runSequenceSpec
		// runs its children.
		return runOneChild(spec, envSliceToMap(os.Environ()))
	default:
		fmt.Fprintf(os.Stderr, "pipeline: unknown command kind %d in invocation\n", spec.Kind)
		return execFailedCode
	}
}

func runFunctionSpec(spec childSpec) int {
	f, err := lookupFunc(spec.FuncHandle)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return execFailedCode
	}
	runErr := f.body(spec.FuncState)
	if f.free != nil {
		f.free(spec.FuncState)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		return 1
	}
	return 0
}

// runSequenceSpec runs each child in order as a real forked grandchild,
// stopping at the first non-zero exit (logical AND), exactly the semantics
// documented on NewSequenceCommand.
func runSequenceSpec(spec childSpec) int {
	base := envSliceToMap(os.Environ())
	delete(base, envInvocation)
	code := 0
	for _, child := range spec.Children {
		code = runOneChild(child, base)
		if code != 0 {
			break
		}
	}
	return code
}

// runOneChild runs a single childSpec (of any kind) as a forked
// grandchild, inheriting this process's stdio, and returns its exit code.
func runOneChild(spec childSpec, base map[string]string) int {
	cmd, err := buildExecCmd(spec, base)
	if err != nil {
		fmt.Fprintln(os.Stderr, execFailedStatus(spec.Name, err).abnormal)
		return execFailedCode
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	if spec.DiscardErr {
		if devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0); err == nil {
			defer devNull.Close()
			cmd.Stderr = devNull
		}
	} else {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, execFailedStatus(spec.Name, err).abnormal)
		return execFailedCode
	}
	applyNice(cmd.Process, spec.Nice)
	err = cmd.Wait()
	st := classifyWaitErr(spec.Name, err, cmd.ProcessState)
	if st.abnormal != nil {
		fmt.Fprintln(os.Stderr, st.abnormal)
	}
	if st.raiseSig != 0 {
		raiseSignal(st.raiseSig)
	}
	return st.code
}
