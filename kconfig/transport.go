package kconfig

import (
	"fmt"

	"github.com/voocel/litellm"
	"github.com/voocel/litellm/providers"

	"github.com/ctxmetab/kernel/transport"
)

// NewTransport builds the litellm client for cfg's provider, mirroring the
// teacher's NewOpenAIModel/NewAnthropicModel/NewGeminiModel constructors
// (llm/litellm.go), and wraps it as a transport.LiteLLMTransport.
func NewTransport(cfg Config) (*transport.LiteLLMTransport, error) {
	providerCfg := providers.ProviderConfig{APIKey: cfg.APIKey}
	if cfg.BaseURL != "" {
		providerCfg.BaseURL = cfg.BaseURL
	}

	var provider providers.Provider
	switch cfg.Provider {
	case ProviderAnthropic:
		provider = providers.NewAnthropic(providerCfg)
	case ProviderGemini:
		provider = providers.NewGemini(providerCfg)
	case ProviderOpenAI, "":
		provider = providers.NewOpenAI(providerCfg)
	default:
		return nil, fmt.Errorf("kconfig: unknown provider %q", cfg.Provider)
	}

	client, err := litellm.New(provider)
	if err != nil {
		return nil, fmt.Errorf("kconfig: build litellm client: %w", err)
	}

	return transport.NewLiteLLMTransport(client, cfg.Model), nil
}
