package pipeline_test

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	pipeline "github.com/Distrotech/libpipeline"
)

// printPidAndSleep reports its own (re-exec'd child's) pid on stdout, then
// blocks long enough for a test to signal it before it would return on its
// own; it is registered at package scope so the re-exec'd copy of this test
// binary can look it up by the same handle.
var printPidAndSleep = pipeline.RegisterFunc("printPidAndSleep", func(state interface{}) error {
	fmt.Println(os.Getpid())
	time.Sleep(30 * time.Second)
	return nil
}, nil)

func TestTrueFalseExitCodes(t *testing.T) {
	p := pipeline.NewPipelineCommands(pipeline.NewCommand("true"))
	ok(t, p.Start())
	code, err := p.Wait()
	ok(t, err)
	eq(t, code, 0)

	p = pipeline.NewPipelineCommands(pipeline.NewCommand("false"))
	ok(t, p.Start())
	code, err = p.Wait()
	ok(t, err)
	eq(t, code, 1)
}

func TestExecFailureReportsSentinelCode(t *testing.T) {
	p := pipeline.NewPipelineCommands(pipeline.NewCommand("/nonexistent/binary"))
	ok(t, p.Start())
	code, err := p.Wait()
	ok(t, err)
	eq(t, code, 0xff)

	p = pipeline.NewPipelineCommands(pipeline.NewCommand("/nonexistent/binary"))
	ok(t, p.Start())
	statuses, aggregate, err := p.WaitAll()
	ok(t, err)
	eq(t, aggregate, 127)
	if len(statuses) != 1 {
		fatalf(t, "got %d statuses, want 1", len(statuses))
	}
	eq(t, statuses[0].Code, 0xff<<8)
	if statuses[0].Err == nil || !errors.Is(statuses[0].Err, pipeline.ErrExecFailed) {
		fatalf(t, "got err %v, want one wrapping pipeline.ErrExecFailed", statuses[0].Err)
	}
}

func TestEchoThroughReadline(t *testing.T) {
	p := pipeline.NewPipelineCommands(pipeline.NewCommandArgs("echo", "hello world"))
	p.SetWantOut(pipeline.WantLibraryPipe)
	ok(t, p.Start())
	line, err := p.ReadLine()
	ok(t, err)
	eq(t, string(line), "hello world\n")
	_, err = p.Wait()
	ok(t, err)
}

func TestEchoSedPipeline(t *testing.T) {
	p := pipeline.NewPipelineCommands(
		pipeline.NewCommandArgs("echo", "hello world"),
		pipeline.NewCommandArgs("sed", "s/world/there/"),
	)
	p.SetWantOut(pipeline.WantLibraryPipe)
	ok(t, p.Start())
	line, err := p.ReadLine()
	ok(t, err)
	eq(t, string(line), "hello there\n")
	_, err = p.Wait()
	ok(t, err)
}

func TestWaitAllAggregateAndPerCommandStatus(t *testing.T) {
	p := pipeline.NewPipelineCommands(
		pipeline.NewCommandArgs("sh", "-c", "exit 2"),
		pipeline.NewCommandArgs("sh", "-c", "exit 3"),
		pipeline.NewCommandArgs("true"),
	)
	ok(t, p.Start())
	statuses, code, err := p.WaitAll()
	ok(t, err)
	eq(t, code, 127)
	if len(statuses) != 3 {
		fatalf(t, "got %d statuses, want 3", len(statuses))
	}
	eq(t, statuses[0].Code, 2<<8)
	eq(t, statuses[1].Code, 3<<8)
	eq(t, statuses[2].Code, 0)
}

func TestSetEnvOverride(t *testing.T) {
	p := pipeline.NewPipelineCommands(
		pipeline.NewCommandArgs("sh", "-c", "echo $GREETING").SetEnv("GREETING", "howdy"),
	)
	p.SetWantOut(pipeline.WantLibraryPipe)
	ok(t, p.Start())
	line, err := p.ReadLine()
	ok(t, err)
	eq(t, string(line), "howdy\n")
	_, err = p.Wait()
	ok(t, err)
}

func TestArgStrQuotingOnCommand(t *testing.T) {
	p := pipeline.NewPipelineCommands(
		pipeline.NewCommand("echo").ArgStr(`'a b' "c d"`),
	)
	p.SetWantOut(pipeline.WantLibraryPipe)
	ok(t, p.Start())
	line, err := p.ReadLine()
	ok(t, err)
	eq(t, string(line), "a b c d\n")
	_, err = p.Wait()
	ok(t, err)
}

func TestArgStrUnterminatedQuotePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			fatal(t, "expected panic for unterminated quote")
		}
	}()
	pipeline.NewCommand("echo").ArgStr(`'unterminated`)
}

func TestLongLineRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/long.txt"
	long := strings.Repeat("x", 9000) + "\n"
	ok(t, os.WriteFile(path, []byte(long), 0o600))

	p := pipeline.NewPipelineCommands(pipeline.NewCommand("cat"))
	p.SetWantInFile(path)
	p.SetWantOut(pipeline.WantLibraryPipe)
	ok(t, p.Start())
	line, err := p.ReadLine()
	ok(t, err)
	eq(t, string(line), long)
	_, err = p.Wait()
	ok(t, err)
}

func TestSequenceOfEchoesPipedToXargs(t *testing.T) {
	seq := pipeline.NewSequenceCommand("echoes",
		pipeline.NewCommandArgs("echo", "one"),
		pipeline.NewCommandArgs("echo", "two"),
		pipeline.NewCommandArgs("echo", "three"),
	)
	p := pipeline.NewPipelineCommands(seq, pipeline.NewCommandArgs("xargs", "-n", "1", "echo", "got:"))
	p.SetWantOut(pipeline.WantLibraryPipe)
	ok(t, p.Start())
	var lines []string
	for {
		line, err := p.ReadLine()
		if len(line) > 0 {
			lines = append(lines, string(line))
		}
		if err != nil {
			break
		}
	}
	eq(t, lines, []string{"got: one\n", "got: two\n", "got: three\n"})
	_, err := p.Wait()
	ok(t, err)
}

func TestPidsAndSignalExitCode(t *testing.T) {
	p := pipeline.NewPipelineCommands(pipeline.NewCommandArgs("sleep", "10"))
	ok(t, p.Start())
	pids := p.Pids()
	if len(pids) != 1 || pids[0] <= 0 {
		fatalf(t, "got pids %v, want one positive pid", pids)
	}
	proc, err := os.FindProcess(pids[0])
	ok(t, err)
	ok(t, proc.Signal(syscall.SIGTERM))
	code, err := p.Wait()
	ok(t, err)
	eq(t, code, 128+int(syscall.SIGTERM))
}

func TestFunctionCommandPidMatchesRecordedPid(t *testing.T) {
	p := pipeline.NewPipelineCommands(pipeline.NewFunctionCommand("whoami", printPidAndSleep, nil))
	p.SetWantOut(pipeline.WantLibraryPipe)
	ok(t, p.Start())

	line, err := p.ReadLine()
	ok(t, err)
	reportedPid := strings.TrimSpace(string(line))

	pids := p.Pids()
	if len(pids) != 1 {
		fatalf(t, "got %d pids, want 1", len(pids))
	}
	eq(t, reportedPid, fmt.Sprint(pids[0]))

	proc, err := os.FindProcess(pids[0])
	ok(t, err)
	ok(t, proc.Signal(syscall.SIGTERM))
	code, err := p.Wait()
	ok(t, err)
	eq(t, code, 128+int(syscall.SIGTERM))
}

func TestPumpFanOut(t *testing.T) {
	src := pipeline.NewPipelineCommands(pipeline.NewCommandArgs("sh", "-c", "printf abcde"))
	sinkA := pipeline.NewPipeline()
	sinkB := pipeline.NewPipeline()
	pipeline.Connect(src, sinkA, sinkB)
	sinkA.SetWantOut(pipeline.WantLibraryPipe)
	sinkB.SetWantOut(pipeline.WantLibraryPipe)

	ok(t, src.Start())
	ok(t, sinkA.Start())
	ok(t, sinkB.Start())

	pumpErr := make(chan error, 1)
	go func() { pumpErr <- pipeline.Pump(src) }()

	outA, err := readAll(sinkA)
	ok(t, err)
	outB, err := readAll(sinkB)
	ok(t, err)
	ok(t, <-pumpErr)

	eq(t, string(outA), "abcde")
	eq(t, string(outB), "abcde")

	_, err = src.Wait()
	ok(t, err)
	_, err = sinkA.Wait()
	ok(t, err)
	_, err = sinkB.Wait()
	ok(t, err)
}

func readAll(p *pipeline.Pipeline) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := p.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
	}
}
