package llm

import (
	"fmt"
	"strings"
)

// BackendError describes a failed completion call.
type BackendError struct {
	Backend  string
	Command  string
	Model    string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s backend failed for model %s", e.Backend, e.Model)
	if e.Command != "" {
		fmt.Fprintf(&b, " while running '%s'", e.Command)
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, ": %s", s)
	}
	return b.String()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Suggestions lists operator checks for the failure.
func (e *BackendError) Suggestions() []string {
	return []string{
		"Is the Ollama daemon running? Try `ollama serve` in another terminal.",
		fmt.Sprintf("Have you pulled the model? Try `ollama pull %s`.", e.Model),
		"Is the tag correct? Run `ollama list` to see local models.",
	}
}
