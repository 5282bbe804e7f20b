package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Client routes decision calls to the configured provider adapter and
// normalizes the response into actions.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	logger          *zap.Logger
	mu              sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers a provider adapter.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[name] = adapter
	}
}

// WithDefaultProvider sets the default provider name.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]ProviderAdapter),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	// If no default and exactly one provider, use it.
	if c.defaultProvider == "" && len(c.providers) == 1 {
		for name := range c.providers {
			c.defaultProvider = name
		}
	}
	return c
}

// RegisterProvider adds a provider adapter to the client.
func (c *Client) RegisterProvider(name string, adapter ProviderAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}

func (c *Client) resolveProvider() (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.defaultProvider == "" {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: "no provider configured",
		}}
	}
	adapter, ok := c.providers[c.defaultProvider]
	if !ok {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: fmt.Sprintf("provider %q is not registered", c.defaultProvider),
		}}
	}
	return adapter, nil
}

// Invoke sends a single request to the configured provider. One attempt, no
// retries; the caller decides how to react to a failed decision.
func (c *Client) Invoke(ctx context.Context, req Request) (*Response, error) {
	adapter, err := c.resolveProvider()
	if err != nil {
		return nil, err
	}
	return adapter.Invoke(ctx, req)
}

// Decide sends a decision request and returns the model's commentary plus the
// normalized action list.
func (c *Client) Decide(ctx context.Context, req Request) (string, []Action, error) {
	resp, err := c.Invoke(ctx, req)
	if err != nil {
		return "", nil, err
	}
	return resp.Text, NormalizeActions(resp.ToolCalls, c.logger), nil
}

// Summarize runs a plain text call with no tools, used for notepad compaction.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Invoke(ctx, Request{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
