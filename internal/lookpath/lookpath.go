// Package lookpath resolves executable names against an explicit
// environment rather than the process's own os.Environ. A pipeline
// command's argv[0] is resolved against its own Vars, which may differ
// from the host's environment, so the stdlib's exec.LookPath (which
// always consults os.Getenv) cannot be used directly.
package lookpath

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// PathEnvVar is the environment variable name consulted for search
// directories.
const PathEnvVar = "PATH"

func splitPath(vars map[string]string) []string {
	var dirs []string
	for _, dir := range strings.Split(vars[PathEnvVar], string(filepath.ListSeparator)) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Look returns the path of the executable named by name. If name
// contains a path separator it is used as-is (after checking it is
// executable); otherwise each directory in vars[PathEnvVar] is searched in
// order, mirroring execvp(3).
func Look(vars map[string]string, name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		if path, ok := isExecutablePath(name); ok {
			return path, nil
		}
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	for _, dir := range splitPath(vars) {
		if path, ok := isExecutablePath(filepath.Join(dir, name)); ok {
			return path, nil
		}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}
