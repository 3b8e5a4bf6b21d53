package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingInput   = errors.New("missing input")
	ErrToolNotFound   = errors.New("tool not found")
	ErrLockContention = errors.New("lock contention")
)

// lockMessage is what git prints when another process holds the config lock.
const lockMessage = "could not lock config file"

type MissingInputError struct{ err error }

func (e *MissingInputError) Error() string        { return e.err.Error() }
func (e *MissingInputError) Unwrap() error        { return e.err }
func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

func MissingInput(err error) error {
	if err == nil {
		return nil
	}
	return &MissingInputError{err: err}
}

func MissingInputf(format string, args ...any) error {
	return &MissingInputError{err: fmt.Errorf(format, args...)}
}

// ToolNotFoundError is returned when a required executable is not on the search path.
type ToolNotFoundError struct {
	Tool string
	Path string
	err  error
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("the '%s' executable could not be found: %s", e.Tool, e.err.Error())
}
func (e *ToolNotFoundError) Unwrap() error        { return e.err }
func (e *ToolNotFoundError) Is(target error) bool { return target == ErrToolNotFound }

func ToolNotFound(tool, path string, err error) error {
	if err == nil {
		return nil
	}
	return &ToolNotFoundError{Tool: tool, Path: path, err: err}
}

// IsLockContention reports whether err is a config lock failure, either
// already classified or carrying git's lock message.
func IsLockContention(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrLockContention) {
		return true
	}
	return strings.Contains(err.Error(), lockMessage)
}
