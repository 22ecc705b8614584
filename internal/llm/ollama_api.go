package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaAPI completes prompts through the Ollama HTTP API.
type OllamaAPI struct {
	client    *ollama.LLM
	model     string
	serverURL string
}

// NewOllamaAPI creates an API backend.
func NewOllamaAPI(serverURL, model string) (*OllamaAPI, error) {
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	client, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, &BackendError{Backend: BackendOllamaAPI, Command: serverURL, Model: model, Err: err}
	}
	return &OllamaAPI{client: client, model: model, serverURL: serverURL}, nil
}

// Name returns the backend name.
func (o *OllamaAPI) Name() string {
	return BackendOllamaAPI
}

// Complete sends one generation request.
func (o *OllamaAPI) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, o.client, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &BackendError{Backend: o.Name(), Command: o.serverURL, Model: o.model, Err: err}
	}
	return strings.TrimSpace(out), nil
}
