package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/glintcart/glintbot/internal/agent"
	"github.com/glintcart/glintbot/internal/backend"
	"github.com/glintcart/glintbot/internal/config"
	"github.com/glintcart/glintbot/internal/dedup"
	"github.com/glintcart/glintbot/internal/gateway"
	"github.com/glintcart/glintbot/internal/llm"
	"github.com/glintcart/glintbot/internal/store"
	"github.com/glintcart/glintbot/internal/voice"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the glintbot gateway server",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("preparing directories: %w", err)
			}

			db, err := store.Open(paths.DBPath(cfg.Storage), log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			calls := store.NewCallStore(db)
			confirmations := store.NewConfirmationStore(db)
			turns := store.NewTurnStore(db)

			client := llm.NewOpenAICompatClient(llm.OpenAICompatConfig{
				Name:        cfg.LLM.Provider,
				APIKey:      cfg.LLM.APIKey,
				BaseURL:     cfg.LLM.BaseURL,
				Model:       cfg.LLM.Model,
				CallTimeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			}, log)

			catalog := backend.NewCatalogClient(cfg.Backends.Catalog.BaseURL, cfg.Backends.Catalog.APIKey)
			orders := backend.NewOrderClient(cfg.Backends.Orders.BaseURL, cfg.Backends.Orders.APIKey)
			shipping := backend.NewShipmentClient(cfg.Backends.Shipping.BaseURL, cfg.Backends.Shipping.APIKey)
			faq := backend.NewFAQClient(cfg.Backends.FAQ.BaseURL, cfg.Backends.FAQ.APIKey)

			registry := agent.NewRegistry(agent.DefaultSpecs()...)
			executor := agent.NewExecutor(registry, catalog, orders, shipping, faq, log)
			orchestrator := agent.NewOrchestrator(client, registry, executor, agent.NewMemoryContextStore(), log)
			orchestrator.SetArchive(turns)

			claims := dedup.NewMemoryClaimer(dedup.DefaultTTL)
			correlator := voice.NewCorrelator(calls, claims, log)
			resolver := voice.NewResolver(confirmations, voice.NewKeywordClassifier(), orders, log)

			opts := []gateway.ServerOption{
				gateway.WithOrchestrator(orchestrator),
				gateway.WithCorrelator(correlator),
				gateway.WithResolver(resolver),
				gateway.WithTools(executor),
				gateway.WithConfirmations(confirmations),
				gateway.WithClaimer(claims),
			}
			if cfg.Voice.PlatformBaseURL != "" {
				opts = append(opts, gateway.WithOutboundCaller(
					backend.NewVoicePlatformClient(cfg.Voice.PlatformBaseURL, cfg.Voice.PlatformAPIKey, cfg.Voice.AgentID)))
			} else {
				log.Warn().Msg("voice platform not configured — outbound confirmation calls disabled")
			}
			if cfg.Backends.Chat.BaseURL != "" {
				opts = append(opts, gateway.WithChatSender(
					backend.NewChatClient(cfg.Backends.Chat.BaseURL, cfg.Backends.Chat.APIKey)))
			} else {
				log.Warn().Msg("chat backend not configured — chat replies will not be delivered")
			}

			srv := gateway.New(cfg, log, opts...)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
