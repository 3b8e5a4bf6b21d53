// Package shell runs external tools synchronously. Stdout is returned to the
// caller, stderr is folded into the error so callers can classify failures by
// message (git's lock contention message arrives on stderr).
package shell

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/CircleCI-Public/ssh-deploy-keys/errs"
)

// Runner runs a single external command to completion.
type Runner interface {
	Run(stdin io.Reader, name string, args ...string) (string, error)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Code, e.Stderr)
}

// ExitCode returns the exit status carried by err, or -1 if err did not come
// from a command that ran.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// Exec is the Runner backed by os/exec.
type Exec struct{}

func (Exec) Run(stdin io.Reader, name string, args ...string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errs.ToolNotFound(name, os.Getenv("PATH"), err)
	}

	var stdout, stderr bytes.Buffer
	command := exec.Command(path, args...)
	command.Stdin = stdin
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), &ExitError{
				Command: strings.Join(append([]string{name}, args...), " "),
				Code:    exitErr.ExitCode(),
				Stderr:  strings.TrimSpace(stderr.String()),
			}
		}
		return stdout.String(), err
	}
	return stdout.String(), nil
}
