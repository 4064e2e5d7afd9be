package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/csvchat-go/internal/config"
)

// NewClient creates a chat-completion client for any OpenAI-compatible
// endpoint.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(clientConfig)
}
