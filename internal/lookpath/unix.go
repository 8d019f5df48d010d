//go:build !windows

package lookpath

import (
	"os"
)

func isExecutablePath(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	if info.Mode()&0111 == 0 {
		return "", false
	}
	return path, true
}
