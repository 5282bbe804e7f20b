package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/config"
)

func TestServeCommandRegistered(t *testing.T) {
	names := []string{}
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
}

func TestBuildClientRequiresCredentials(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai"} {
		t.Run(provider, func(t *testing.T) {
			cfg := &config.Config{
				Provider: provider,
				Providers: map[string]config.ProviderConfig{
					provider: {APIKey: "", Model: "some-model"},
				},
			}
			_, err := buildClient(context.Background(), cfg, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestBuildClientAnthropic(t *testing.T) {
	cfg := &config.Config{
		Provider: "anthropic",
		Providers: map[string]config.ProviderConfig{
			"anthropic": {APIKey: "key", Model: "claude-3-7-sonnet-20250219"},
		},
	}
	client, err := buildClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, client)
}
