// ABOUTME: Generation-service provider detection from environment variables and client construction.
// ABOUTME: Supports Anthropic, OpenAI (including compatible base URLs), and Gemini through mux.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	muxllm "github.com/2389-research/mux/llm"
)

// ErrNoProvider is returned when no provider has an API key configured.
var ErrNoProvider = errors.New("no generation provider configured")

// ProviderInfo describes one provider's configuration without its secret.
type ProviderInfo struct {
	Name      string  `json:"name"`
	HasAPIKey bool    `json:"has_api_key"`
	Model     string  `json:"model"`
	BaseURL   *string `json:"base_url,omitempty"`
}

// ProviderStatus is the result of DetectProviders.
type ProviderStatus struct {
	DefaultProvider string         `json:"default_provider"`
	DefaultModel    *string        `json:"default_model,omitempty"`
	Providers       []ProviderInfo `json:"providers"`
	AnyAvailable    bool           `json:"any_available"`
}

// DetectProviders inspects the environment for configured providers.
func DetectProviders() ProviderStatus {
	defaultProvider := envOr("SITEGEN_DEFAULT_PROVIDER", "anthropic")
	defaultModel := os.Getenv("SITEGEN_DEFAULT_MODEL")

	providers := []ProviderInfo{
		checkProvider("anthropic", "claude-sonnet-4-5-20250929"),
		checkProvider("openai", "gpt-4o"),
		checkProvider("gemini", "gemini-2.0-flash"),
	}

	status := ProviderStatus{DefaultProvider: defaultProvider, Providers: providers}
	if defaultModel != "" {
		status.DefaultModel = &defaultModel
	}
	for _, p := range providers {
		if p.HasAPIKey {
			status.AnyAvailable = true
			break
		}
	}
	return status
}

// Select picks the default provider when it has a key, else the first
// provider that does. SITEGEN_DEFAULT_MODEL overrides the chosen model.
func (ps ProviderStatus) Select() (ProviderInfo, error) {
	pick := func(p ProviderInfo) ProviderInfo {
		if ps.DefaultModel != nil {
			p.Model = *ps.DefaultModel
		}
		return p
	}
	for _, p := range ps.Providers {
		if p.Name == ps.DefaultProvider && p.HasAPIKey {
			return pick(p), nil
		}
	}
	for _, p := range ps.Providers {
		if p.HasAPIKey {
			log.Printf("component=llm action=provider_fallback default=%s using=%s", ps.DefaultProvider, p.Name)
			return pick(p), nil
		}
	}
	return ProviderInfo{}, ErrNoProvider
}

// APIKey returns the key for the named provider from the environment.
func APIKey(name string) string {
	return os.Getenv(strings.ToUpper(name) + "_API_KEY")
}

// NewClient builds a mux client for p. An OpenAI provider with a base URL
// override goes through OpenAICompatClient.
func NewClient(ctx context.Context, p ProviderInfo, apiKey string) (muxllm.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", p.Name, ErrNoProvider)
	}
	switch p.Name {
	case "anthropic":
		return muxllm.NewAnthropicClient(apiKey, p.Model), nil
	case "openai":
		if p.BaseURL != nil {
			return NewOpenAICompatClient(apiKey, p.Model, *p.BaseURL), nil
		}
		return muxllm.NewOpenAIClient(apiKey, p.Model), nil
	case "gemini":
		client, err := muxllm.NewGeminiClient(ctx, apiKey, p.Model)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p.Name)
	}
}

// Setup detects, selects and constructs the client in one step. Non-empty
// provider and model take precedence over the environment.
func Setup(ctx context.Context, provider, model string) (muxllm.Client, ProviderInfo, error) {
	status := DetectProviders()
	if provider != "" {
		status.DefaultProvider = provider
	}
	if model != "" {
		status.DefaultModel = &model
	}
	p, err := status.Select()
	if err != nil {
		return nil, ProviderInfo{}, err
	}
	client, err := NewClient(ctx, p, APIKey(p.Name))
	if err != nil {
		return nil, ProviderInfo{}, err
	}
	log.Printf("component=llm action=client_ready provider=%s model=%s", p.Name, p.Model)
	return client, p, nil
}

func checkProvider(name, defaultModel string) ProviderInfo {
	upper := strings.ToUpper(name)
	info := ProviderInfo{
		Name:      name,
		HasAPIKey: os.Getenv(upper+"_API_KEY") != "",
		Model:     envOr(upper+"_MODEL", defaultModel),
	}
	if base := os.Getenv(upper + "_BASE_URL"); base != "" {
		info.BaseURL = &base
	}
	return info
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
