package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glintcart/glintbot/internal/config"
	"github.com/glintcart/glintbot/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show glintbot status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Glintbot %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Gateway: port=%d bind=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind)
			fmt.Printf("LLM:     provider=%s model=%s\n", cfg.LLM.Provider, cfg.LLM.Model)
			fmt.Printf("Storage: %s\n", paths.DBPath(cfg.Storage))

			backendLine := func(name string, e config.BackendEntry) {
				if e.BaseURL != "" {
					fmt.Printf("%-9s%s\n", name+":", e.BaseURL)
				} else {
					fmt.Printf("%-9s(not configured)\n", name+":")
				}
			}
			backendLine("Catalog", cfg.Backends.Catalog)
			backendLine("Orders", cfg.Backends.Orders)
			backendLine("Shipping", cfg.Backends.Shipping)
			backendLine("FAQ", cfg.Backends.FAQ)
			backendLine("Chat", cfg.Backends.Chat)

			if cfg.Voice.PlatformBaseURL != "" {
				fmt.Printf("Voice:   %s agent=%s ttl=%dm\n",
					cfg.Voice.PlatformBaseURL, cfg.Voice.AgentID, cfg.Voice.ConfirmationTTLMinutes)
			} else {
				fmt.Println("Voice:   (not configured)")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
