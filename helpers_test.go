package pipeline_test

import (
	"os"
	"reflect"
	"runtime/debug"
	"testing"

	pipeline "github.com/Distrotech/libpipeline"
)

func TestMain(m *testing.M) {
	pipeline.InitMain()
	os.Exit(m.Run())
}

func fatal(t *testing.T, v ...interface{}) {
	debug.PrintStack()
	t.Fatal(v...)
}

func fatalf(t *testing.T, format string, v ...interface{}) {
	debug.PrintStack()
	t.Fatalf(format, v...)
}

func ok(t *testing.T, err error) {
	if err != nil {
		fatal(t, err)
	}
}

func eq(t *testing.T, got, want interface{}) {
	if !reflect.DeepEqual(got, want) {
		fatalf(t, "got %v, want %v", got, want)
	}
}
