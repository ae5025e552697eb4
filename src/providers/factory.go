package providers

import (
	"fmt"

	"github.com/mindroute-ai/mindroute/src/config"
	"github.com/mindroute-ai/mindroute/src/models"
)

// New builds the adapter a provider config asks for.
func New(cfg *config.ProviderConfig) (models.ProviderClient, error) {
	switch cfg.Kind {
	case "openai", "":
		return NewOpenAIClient(cfg)
	case "langchain":
		return NewLangChainClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider kind %q for provider %q", cfg.Kind, cfg.ID)
	}
}

// NewAll builds every configured adapter, keyed by provider id.
func NewAll(cfgs []config.ProviderConfig) (map[string]models.ProviderClient, error) {
	clients := make(map[string]models.ProviderClient, len(cfgs))
	for i := range cfgs {
		client, err := New(&cfgs[i])
		if err != nil {
			return nil, err
		}
		if _, dup := clients[client.ID()]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", client.ID())
		}
		clients[client.ID()] = client
	}
	return clients, nil
}
