package llm

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Command runs a CLI per prompt, writing the prompt to stdin and reading the
// completion from stdout.
type Command struct {
	model string
	path  string
	args  []string
}

// NewCommand creates a CLI backend that runs `path args... model`.
func NewCommand(model, path string, args ...string) *Command {
	return &Command{model: model, path: path, args: append([]string(nil), args...)}
}

// Name returns the backend name.
func (c *Command) Name() string {
	return BackendOllamaCLI
}

// Complete runs the command once.
func (c *Command) Complete(ctx context.Context, prompt string) (string, error) {
	argv := append(append([]string(nil), c.args...), c.model)
	cmd := exec.CommandContext(ctx, c.path, argv...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		be := &BackendError{
			Backend: c.Name(),
			Command: strings.Join(append([]string{c.path}, argv...), " "),
			Model:   c.model,
			Stderr:  stderr.String(),
			Err:     err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			be.ExitCode = exitErr.ExitCode()
		}
		return "", be
	}
	return strings.TrimSpace(stdout.String()), nil
}
