// Package commandutil interprets command runner failures.
package commandutil

import (
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/chocostate/internal/ports"
)

// IsCommandNotFound reports whether an error indicates a missing executable.
func IsCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return true
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return true
	}
	return false
}

// IsNotRecognized reports whether a completed command failed because the
// remote shell could not find the executable. cmd.exe exits 9009, POSIX
// shells exit 127, and PowerShell prints "is not recognized".
func IsNotRecognized(result ports.CommandResult) bool {
	switch result.ExitCode {
	case 9009, 127:
		return true
	case 0:
		return false
	}
	return strings.Contains(strings.ToLower(result.Stderr), "is not recognized")
}
