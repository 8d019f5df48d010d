package pipeline_test

import (
	"strings"
	"testing"

	pipeline "github.com/Distrotech/libpipeline"
)

func TestArgsFromStringUnquotedMatchesWhitespaceSplit(t *testing.T) {
	cases := []string{
		"echo foo bar",
		"a b c d",
		"single",
		"lots   of   space",
	}
	for _, s := range cases {
		got, err := pipeline.ArgsFromString(s)
		ok(t, err)
		eq(t, got, strings.Fields(s))
	}
}

func TestArgsFromStringQuoting(t *testing.T) {
	got, err := pipeline.ArgsFromString(`echo 'a b' "c\"d"`)
	ok(t, err)
	eq(t, got, []string{"echo", "a b", `c"d`})
}

func TestArgsFromStringUnterminatedQuote(t *testing.T) {
	_, err := pipeline.ArgsFromString("echo 'unterminated")
	if err == nil {
		fatal(t, "expected error for unterminated quote")
	}
	var directiveErr *pipeline.ConfigDirectiveError
	if !asConfigDirectiveError(err, &directiveErr) {
		fatalf(t, "got %T, want *pipeline.ConfigDirectiveError", err)
	}
}

func TestArgsFromStringDropsLeadingExec(t *testing.T) {
	got, err := pipeline.ArgsFromString("exec echo hi")
	ok(t, err)
	eq(t, got, []string{"echo", "hi"})
}

func asConfigDirectiveError(err error, target **pipeline.ConfigDirectiveError) bool {
	if e, ok := err.(*pipeline.ConfigDirectiveError); ok {
		*target = e
		return true
	}
	return false
}
