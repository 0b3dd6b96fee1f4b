package command

import (
	"fmt"
	"os"

	shellwords "github.com/mattn/go-shellwords"
)

// Spec describes an executable ready to be attached to a PTY. Built once at
// spawn time; callers must not mutate it afterwards.
type Spec struct {
	Executable string
	Args       []string
	Env        []string
	Dir        string
}

// FromLine builds a Spec from a single command line and a working directory.
// Tokenization follows shell quoting rules (single/double quotes, backslash
// escapes). An empty or unparseable line yields a Spec with no executable;
// the failure surfaces when the spawn is attempted.
//
// The child inherits the full parent environment with TERM forced to a sane
// terminal type. Entries from extra override inherited ones (last wins in
// exec.Cmd semantics).
func FromLine(line, dir string, extra map[string]string) Spec {
	spec := Spec{Dir: dir}

	tokens, err := shellwords.Parse(line)
	if err != nil || len(tokens) == 0 {
		return spec
	}

	spec.Executable = tokens[0]
	spec.Args = tokens[1:]
	spec.Env = buildEnv(extra)
	return spec
}

// Empty reports whether the command line produced no executable.
func (s Spec) Empty() bool {
	return s.Executable == ""
}

// Line reconstructs a loggable form of the command. Not round-trippable;
// for debug output only.
func (s Spec) Line() string {
	line := s.Executable
	for _, a := range s.Args {
		line += " " + a
	}
	return line
}

func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	env = append(env, "TERM=xterm-256color")
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
