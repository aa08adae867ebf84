package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/insightduck/insightduck/internal/auth"
	"github.com/insightduck/insightduck/internal/chart"
	"github.com/insightduck/insightduck/internal/config"
	"github.com/insightduck/insightduck/internal/projects"
	"github.com/insightduck/insightduck/internal/secrets"
	"github.com/insightduck/insightduck/internal/server"
	"github.com/insightduck/insightduck/internal/store"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			accessor, err := store.Open(cfg.Store.Database, logger)
			if err != nil {
				return err
			}
			defer func() { _ = accessor.Close() }()

			meta := projects.NewStore()
			if err := meta.Open(cfg.Metadata.Path); err != nil {
				return err
			}
			defer func() { _ = meta.Close() }()

			resolver, err := buildResolver(cfg)
			if err != nil {
				return err
			}

			var box *secrets.Box
			if cfg.Secrets.Key != "" {
				box, err = secrets.NewBox(cfg.Secrets.Key)
				if err != nil {
					return fmt.Errorf("invalid secrets key: %w", err)
				}
			} else {
				logger.Warn("secrets key not set; kaggle credential storage disabled")
			}

			var chat chart.ChatClient
			if cfg.LLM.APIKey != "" {
				chat, err = chart.NewGroqClient(chart.GroqConfig{
					APIKey:  cfg.LLM.APIKey,
					BaseURL: cfg.LLM.BaseURL,
					Model:   cfg.LLM.Model,
				})
				if err != nil {
					return fmt.Errorf("invalid llm config: %w", err)
				}
			} else {
				logger.Warn("llm api key not set; chart suggestions disabled")
			}

			srv := server.NewServer(server.Config{
				Host:     cfg.Server.Host,
				Port:     cfg.Server.Port,
				Workers:  cfg.Store.Workers,
				Store:    accessor,
				Meta:     meta,
				Resolver: resolver,
				Box:      box,
				Chat:     chat,
				Logger:   logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Serve(ctx)
		},
	}
}

func buildResolver(cfg *config.Config) (auth.UserResolver, error) {
	if cfg.Auth.Disabled {
		return &auth.StaticResolver{}, nil
	}
	return auth.NewSupabaseResolver(cfg.Auth.URL, cfg.Auth.APIKey)
}
