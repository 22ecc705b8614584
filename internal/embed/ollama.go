package embed

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

// Ollama embeds text with a model served by a local Ollama daemon.
type Ollama struct {
	client *ollama.LLM
	model  string
}

// NewOllama creates an Ollama embedder.
func NewOllama(serverURL, model string) (*Ollama, error) {
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	if model == "" {
		model = "all-minilm"
	}
	client, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("%w: create ollama client: %v", ErrUnavailable, err)
	}
	return &Ollama{client: client, model: model}, nil
}

// Embed returns the embedding for text.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama model %s: %v", ErrUnavailable, o.model, err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: ollama model %s returned %d embeddings", ErrUnavailable, o.model, len(vecs))
	}
	return vecs[0], nil
}

// Model returns the model name.
func (o *Ollama) Model() string {
	return o.model
}
