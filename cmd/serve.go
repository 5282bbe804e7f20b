package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/chat"
	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/config"
	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/engine"
	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/llm"
	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/memory"
	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/observability"
	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the emulator-facing decision server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	logger := observability.GetLogger()
	defer observability.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := buildClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	store, err := memory.NewStore(
		cfg.Memory.NotepadPath,
		cfg.Memory.ThinkingPath,
		cfg.Memory.MaxNotepadChars,
		client,
		logger.Named("memory"),
	)
	if err != nil {
		return err
	}

	engineOpts := []engine.Option{}
	if maxTokens := cfg.ProviderSettings().MaxTokens; maxTokens > 0 {
		engineOpts = append(engineOpts, engine.WithMaxTokens(maxTokens))
	}

	group, ctx := errgroup.WithContext(ctx)

	var chatClient *chat.Client
	if cfg.Chat.Enabled {
		chatClient = chat.NewClient(
			cfg.Chat.Server, cfg.Chat.Port,
			cfg.Chat.Nickname, cfg.Chat.Token, cfg.Chat.Channel,
			cfg.Chat.Capacity,
			logger.Named("chat"),
		)
		engineOpts = append(engineOpts, engine.WithSuggestionSource(chatClient))
		group.Go(func() error { return chatClient.Run(ctx) })
	}

	eng := engine.New(client, store, cfg.Decision.Cooldown, logger.Named("engine"), engineOpts...)

	srv := server.New(cfg.Server.Host, cfg.Server.Port, eng, cfg.Server.ShutdownTimeout, logger.Named("server"))
	if err := srv.Listen(); err != nil {
		return err
	}
	group.Go(func() error { return srv.Serve(ctx) })

	logger.Info("decision server running",
		zap.String("provider", cfg.Provider),
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)))

	return group.Wait()
}

// buildClient constructs the LLM client for the configured provider.
func buildClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*llm.Client, error) {
	settings := cfg.ProviderSettings()

	var adapter llm.ProviderAdapter
	var err error
	switch cfg.Provider {
	case "anthropic":
		adapter, err = llm.NewAnthropicAdapter(settings.APIKey, settings.Model)
	case "openai":
		adapter, err = llm.NewOpenAIAdapter(settings.APIKey, settings.Model)
	case "gemini", "google":
		adapter, err = llm.NewGeminiAdapter(ctx, settings.APIKey, settings.Model)
	default:
		// Everything else goes through gollm (ollama-class local backends).
		var opts []gollm.ConfigOption
		if settings.Host != "" {
			opts = append(opts, gollm.SetOllamaEndpoint(settings.Host))
		}
		adapter, err = llm.NewGollmAdapter(cfg.Provider, settings.APIKey, settings.Model, opts...)
	}
	if err != nil {
		return nil, err
	}

	return llm.NewClient(
		llm.WithProvider(adapter.Name(), adapter),
		llm.WithDefaultProvider(adapter.Name()),
		llm.WithLogger(logger.Named("llm")),
	), nil
}
