package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

var _ Generator = (*OllamaLLM)(nil)

// OllamaLLM handles interactions with the Ollama LLM API
type OllamaLLM struct {
	Client *api.Client
	Model  string
}

// NewOllamaLLM creates a new Ollama LLM client. An empty host falls back to
// OLLAMA_HOST.
func NewOllamaLLM(host string, model string) (*OllamaLLM, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ollama host: %w", err)
		}
		hostURL = u
	}
	client := api.NewClient(hostURL, http.DefaultClient)

	return &OllamaLLM{
		Client: client,
		Model:  model,
	}, nil
}

// Generate streams the completion and returns it in one piece
func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	req := api.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		Options: map[string]interface{}{
			"temperature": 0,
			"num_predict": 1024,
		},
	}

	var responseBuilder strings.Builder

	err := o.Client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	return responseBuilder.String(), nil
}

// ModelName returns the Ollama model tag
func (o *OllamaLLM) ModelName() string {
	return o.Model
}
