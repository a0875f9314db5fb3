package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"hatespeech-annotation/internal/gemini"
	"hatespeech-annotation/internal/groq"
	"hatespeech-annotation/internal/openrouter"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrAllProvidersFailed is returned when every configured provider failed
// for one prompt.
var ErrAllProvidersFailed = errors.New("all providers failed")

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
)

// defaultRequestsPerMinute is the conservative free-tier budget.
const defaultRequestsPerMinute = 8

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type              ProviderType  `yaml:"type"`
	APIKey            string        `yaml:"api_key"`
	ModelName         string        `yaml:"model_name"`
	BaseURL           string        `yaml:"base_url"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// Provider turns a prompt into the model's raw reply. Parsing the reply is
// left to the caller.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// RateLimitedProvider wraps a provider with rate limiting
type RateLimitedProvider struct {
	provider          Provider
	limiter           *rate.Limiter
	requestsPerMinute int
}

// NewRateLimitedProvider allows requestsPerMinute calls spread evenly over a
// minute, with a burst of one.
func NewRateLimitedProvider(provider Provider, requestsPerMinute int) *RateLimitedProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	return &RateLimitedProvider{
		provider:          provider,
		limiter:           rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		requestsPerMinute: requestsPerMinute,
	}
}

func (p *RateLimitedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.Generate(ctx, prompt)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

// RequestsPerMinute returns the effective budget, defaults applied
func (p *RateLimitedProvider) RequestsPerMinute() int {
	return p.requestsPerMinute
}

func (p *RateLimitedProvider) GetModelInfo() map[string]interface{} {
	info := p.provider.GetModelInfo()
	info["rate_limit_per_minute"] = p.requestsPerMinute
	return info
}

// MultiProviderClient manages multiple LLM providers with fallback
type MultiProviderClient struct {
	providers    []*RateLimitedProvider
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []ProviderConfig
	MaxFailures int // consecutive failures before switching provider
}

// NewMultiProviderClient builds every configured provider. Providers that
// fail to initialize are skipped; at least one must succeed.
func NewMultiProviderClient(cfg MultiProviderConfig, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	providers := make([]*RateLimitedProvider, 0, len(cfg.Providers))
	for i, providerCfg := range cfg.Providers {
		provider, err := newProvider(providerCfg, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		limited := NewRateLimitedProvider(provider, providerCfg.RequestsPerMinute)
		providers = append(providers, limited)

		logger.Info("Provider initialized",
			zap.String("type", string(providerCfg.Type)),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", limited.RequestsPerMinute()),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return newMultiProviderClient(providers, cfg.MaxFailures, logger), nil
}

func newMultiProviderClient(providers []*RateLimitedProvider, maxFailures int, logger *zap.Logger) *MultiProviderClient {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &MultiProviderClient{
		providers:    providers,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}
}

func newProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:            cfg.APIKey,
			ModelName:         cfg.ModelName,
			MaxRetries:        cfg.MaxRetries,
			RetryDelay:        cfg.RetryDelay,
			SystemInstruction: SystemInstruction,
		}, logger)
	case ProviderGroq:
		return groq.NewClient(groq.Config{
			APIKey:            cfg.APIKey,
			ModelName:         cfg.ModelName,
			BaseURL:           cfg.BaseURL,
			MaxRetries:        cfg.MaxRetries,
			RetryDelay:        cfg.RetryDelay,
			SystemInstruction: SystemInstruction,
		}, logger)
	case ProviderOpenRouter:
		return openrouter.NewClient(openrouter.Config{
			APIKey:            cfg.APIKey,
			ModelName:         cfg.ModelName,
			BaseURL:           cfg.BaseURL,
			MaxRetries:        cfg.MaxRetries,
			RetryDelay:        cfg.RetryDelay,
			SystemInstruction: SystemInstruction,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

func (c *MultiProviderClient) getCurrentProvider() (*RateLimitedProvider, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

// switchFrom moves to the next provider unless another caller already did.
func (c *MultiProviderClient) switchFrom(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentIndex != index {
		return
	}
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", index),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

// recordFailure reports whether the provider reached the failure limit.
func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++

	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		return true
	}
	return false
}

func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// Generate tries the current provider and falls through the others on
// failure. A provider is switched away from after maxFailures consecutive
// failures, or at once on a rate-limit error.
func (c *MultiProviderClient) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempts := 0; attempts < len(c.providers); attempts++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		provider, providerIndex := c.getCurrentProvider()

		c.logger.Debug("Attempting generation",
			zap.Int("provider_index", providerIndex),
			zap.Int("attempt", attempts+1))

		text, err := provider.Generate(ctx, prompt)
		if err == nil {
			c.resetFailureCount(providerIndex)
			return text, nil
		}
		lastErr = err

		c.logger.Error("Provider failed",
			zap.Int("provider_index", providerIndex),
			zap.Error(err))

		if c.recordFailure(providerIndex) || IsRateLimitError(err) {
			c.switchFrom(providerIndex)
		}
	}

	return "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var lastErr error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// GetModelInfo returns information about the current provider
func (c *MultiProviderClient) GetModelInfo() map[string]interface{} {
	provider, index := c.getCurrentProvider()
	info := provider.GetModelInfo()

	c.mu.RLock()
	defer c.mu.RUnlock()
	info["is_current"] = true
	info["provider_index"] = index
	info["total_providers"] = len(c.providers)
	info["failure_count"] = c.failureCount[index]
	return info
}

// GetProvidersInfo returns information about all providers
func (c *MultiProviderClient) GetProvidersInfo() []map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := make([]map[string]interface{}, len(c.providers))
	for i, provider := range c.providers {
		providerInfo := provider.GetModelInfo()
		providerInfo["is_current"] = i == c.currentIndex
		providerInfo["failure_count"] = c.failureCount[i]
		info[i] = providerInfo
	}
	return info
}
