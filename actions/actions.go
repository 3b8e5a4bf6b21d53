// Package actions implements the parts of the GitHub Actions runner protocol
// this tool needs: reading step inputs and exporting variables to later steps.
package actions

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Input returns the value of a step input, trimmed.
func Input(name string) string {
	env := "INPUT_" + strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
	return strings.TrimSpace(os.Getenv(env))
}

// BoolInput parses a boolean step input using the YAML 1.2 core schema
// spellings. ok is false when the input is unset.
func BoolInput(name string) (value, ok bool, err error) {
	raw := Input(name)
	switch raw {
	case "":
		return false, false, nil
	case "true", "True", "TRUE":
		return true, true, nil
	case "false", "False", "FALSE":
		return false, true, nil
	}
	return false, false, errors.Errorf("input does not meet YAML 1.2 \"Core Schema\" specification: %s", name)
}

// Exporter publishes variables to the current process and to later steps.
type Exporter struct {
	Fs afero.Fs
	// EnvFile is the runner's GITHUB_ENV file; empty outside Actions.
	EnvFile string
	// Stdout receives the ::set-env fallback when EnvFile is empty.
	Stdout func(string)
}

func NewExporter(fs afero.Fs) *Exporter {
	return &Exporter{
		Fs:      fs,
		EnvFile: os.Getenv("GITHUB_ENV"),
		Stdout:  func(s string) { fmt.Println(s) },
	}
}

// Export sets name=value here and for every later step of the job.
func (e *Exporter) Export(name, value string) error {
	if err := os.Setenv(name, value); err != nil {
		return err
	}
	if e.EnvFile == "" {
		e.Stdout(fmt.Sprintf("::set-env name=%s::%s", name, value))
		return nil
	}

	delimiter := "ghadelimiter_" + uuid.NewString()
	if strings.Contains(name, delimiter) || strings.Contains(value, delimiter) {
		return errors.Errorf("unexpected input: %s contains the delimiter", name)
	}

	f, err := e.Fs.OpenFile(e.EnvFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening %s", e.EnvFile)
	}
	_, err = fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter)
	if err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "writing %s", e.EnvFile)
	}
	return f.Close()
}
