package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/glintcart/glintbot/internal/config"
)

// newConfirmCmd triggers an outbound order-confirmation call through a
// running gateway instance.
func newConfirmCmd() *cobra.Command {
	var (
		phone   string
		items   string
		total   float64
		gateURL string
	)

	cmd := &cobra.Command{
		Use:   "confirm <order-id>",
		Short: "Place an order-confirmation call via the running gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if phone == "" {
				return fmt.Errorf("--phone is required")
			}
			if cfg.Gateway.Auth.Token == "" {
				return fmt.Errorf("gateway.auth.token is not configured")
			}

			if gateURL == "" {
				gateURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Gateway.Port)
			}

			body, err := json.Marshal(map[string]any{
				"order_id":      args[0],
				"phone":         phone,
				"items_summary": items,
				"total_amount":  total,
			})
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				gateURL+"/orders/confirm", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+cfg.Gateway.Auth.Token)

			client := &http.Client{Timeout: 30 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("is the gateway running? %w", err)
			}
			defer resp.Body.Close()

			out, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
			if resp.StatusCode != http.StatusAccepted {
				return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(out))
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "customer phone number")
	cmd.Flags().StringVar(&items, "items", "", "one-line order summary read out on the call")
	cmd.Flags().Float64Var(&total, "total", 0, "order total in rupees")
	cmd.Flags().StringVar(&gateURL, "gateway-url", "", "gateway base URL (default http://127.0.0.1:<port>)")

	return cmd
}
