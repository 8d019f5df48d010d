package pipeline

import (
	"os"
	"syscall"
)

// applyNice applies a best-effort niceness delta to proc right after it
// starts. Failures are ignored, matching the original library's treatment
// of setpriority() as advisory.
func applyNice(proc *os.Process, delta int) {
	if delta == 0 || proc == nil {
		return
	}
	cur, err := syscall.Getpriority(syscall.PRIO_PROCESS, proc.Pid)
	if err != nil {
		return
	}
	// Linux getpriority returns a value already shifted by 20; restore it
	// before adding delta, matching setpriority's own convention.
	_ = syscall.Setpriority(syscall.PRIO_PROCESS, proc.Pid, 20-cur+delta)
}

// classifyWaitErr turns the (error, *os.ProcessState) pair returned by
// (*exec.Cmd).Wait into a *status, handling both the common case (the
// process ran and exited or was signaled) and the case where Wait itself
// failed for a reason unrelated to the child's own exit.
func classifyWaitErr(name string, waitErr error, ps *os.ProcessState) *status {
	if ps != nil {
		return classifyState(name, ps)
	}
	return execFailedStatus(name, waitErr)
}
