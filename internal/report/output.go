package report

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var outputNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`) //nolint:gochecknoglobals // compiled once

func checkName(name string) error {
	if !outputNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrOutputName, name)
	}
	return nil
}

// WriteGitHubOutput appends name=value to the $GITHUB_OUTPUT file at path
// using the multi-line heredoc form.
func WriteGitHubOutput(path, name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}

	delim := "ghadelimiter_" + uuid.NewString()
	if strings.Contains(value, delim) {
		return fmt.Errorf("%w: value contains the delimiter", ErrWriteOutput)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	if _, err := fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", name, delim, value, delim); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}

var commandEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A") //nolint:gochecknoglobals // stateless

// LegacySetOutput writes the deprecated ::set-output workflow command to w.
// Used when the runner does not provide a $GITHUB_OUTPUT file.
func LegacySetOutput(w io.Writer, name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "::set-output name=%s::%s\n", name, commandEscaper.Replace(value)); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}
