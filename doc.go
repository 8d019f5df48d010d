// Package pipeline builds and runs shell-style pipelines of child
// processes without going through a command interpreter.
//
// A Pipeline is an ordered sequence of Commands, each of which is either
// an external process, an in-process Go function run in a freshly
// re-exec'd child, or a sequence of sub-commands run with shell-style "&&"
// semantics. Pipelines can be started, read from with peek/line semantics,
// waited on for a deterministic exit code, and fanned out from one source
// into several sinks with Pump.
//
// Pipeline is meant for programs that would otherwise be tempted to shell
// out to "sh -c" to glue together small toolchains, e.g. a manual-page
// viewer piping "nroff | grep | pager". It deliberately does not implement
// wildcard expansion, variable expansion, or command substitution: use
// Command.Arg to build argument vectors explicitly, or ArgsFromString to
// tokenize a trusted configuration string.
//
// Any host program that uses NewFunctionCommand must call InitMain at the
// top of main, before flag parsing, so that re-exec'd children can find
// their way to the registered function instead of running main's normal
// logic.
package pipeline
