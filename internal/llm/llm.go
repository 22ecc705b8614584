// Package llm provides blocking text-completion backends.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Backend names.
const (
	BackendOllamaAPI = "ollama-api"
	BackendOllamaCLI = "ollama-cli"
)

// DefaultModel is used when no model is configured or passed on the command line.
const DefaultModel = "llama3:8b"

// Backend turns a prompt into a completion.
// Implementations must be safe for concurrent use.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	Backend   string
	Model     string
	ServerURL string
	// Command overrides the CLI executable and its leading arguments. The
	// model name is appended.
	Command []string
}

// New builds the configured backend.
func New(cfg Config) (Backend, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendOllamaCLI:
		argv := cfg.Command
		if len(argv) == 0 {
			argv = []string{"ollama", "run"}
		}
		return NewCommand(model, argv[0], argv[1:]...), nil
	case BackendOllamaAPI:
		return NewOllamaAPI(cfg.ServerURL, model)
	default:
		return nil, fmt.Errorf("unknown llm backend %q (want %s or %s)", cfg.Backend, BackendOllamaCLI, BackendOllamaAPI)
	}
}
