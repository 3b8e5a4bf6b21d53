package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Logger wraps a few log.Logger instances in private fields.
// They are accessible via their respective methods.
type Logger struct {
	debug   *log.Logger
	info    *log.Logger
	error   *log.Logger
	verbose bool
	// actions switches output to GitHub Actions workflow commands
	// (::debug::, ::warning::, ::error::).
	actions bool
}

// NewLogger returns a reference to a Logger.
// By default debug, warnings and errors go to os.Stderr, and info goes to os.Stdout.
// Inside a GitHub Actions job everything goes to os.Stdout, because the runner
// only parses workflow commands from there.
func NewLogger(verbose bool) *Logger {
	if InActions() {
		return NewWithWriters(os.Stdout, os.Stdout, verbose, true)
	}
	return NewWithWriters(os.Stdout, os.Stderr, verbose, false)
}

// NewWithWriters builds a Logger on explicit writers, mostly for tests.
func NewWithWriters(out, errOut io.Writer, verbose, actions bool) *Logger {
	return &Logger{
		debug:   log.New(errOut, "", 0),
		info:    log.New(out, "", 0),
		error:   log.New(errOut, "", 0),
		verbose: verbose,
		actions: actions,
	}
}

// Discard returns a Logger that writes nowhere.
func Discard() *Logger {
	return NewWithWriters(io.Discard, io.Discard, false, false)
}

// InActions reports whether we run as a GitHub Actions step.
func InActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// Debug prints a formatted message to stderr only if verbose is set.
// Inside Actions it is always emitted as a ::debug:: command; the runner
// decides whether to show it.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.actions {
		l.debug.Print(command("debug", fmt.Sprintf(format, args...)))
		return
	}
	if l.verbose {
		l.debug.Printf(format, args...)
	}
}

// Info prints all args to os.Stdout
func (l *Logger) Info(args ...interface{}) {
	l.info.Print(args...)
}

// Infoln prints all args to os.Stdout followed by a newline.
func (l *Logger) Infoln(args ...interface{}) {
	l.info.Println(args...)
}

// Infof prints a formatted message to stdout
func (l *Logger) Infof(format string, args ...interface{}) {
	l.info.Printf(format, args...)
}

// Warnf prints a formatted warning. Warnings never stop the run.
func (l *Logger) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.actions {
		l.error.Print(command("warning", msg))
		return
	}
	l.error.Print(color.YellowString("Warning: %s", msg))
}

// Error prints a message and the given error's message to os.Stderr
func (l *Logger) Error(msg string, err error) {
	if err == nil {
		return
	}
	if l.actions {
		l.error.Print(command("error", msg+err.Error()))
		return
	}
	l.error.Print(color.RedString("%s%s", msg, err.Error()))
}

// command renders a workflow command, escaping the message the same way
// @actions/core does.
func command(name, msg string) string {
	r := strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	return fmt.Sprintf("::%s::%s", name, r.Replace(msg))
}
