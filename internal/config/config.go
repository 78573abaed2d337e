package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18990,
			Bind: "loopback",
		},
		LLM: LLMConfig{
			Provider:       "deepseek",
			BaseURL:        "https://api.deepseek.com/v1",
			Model:          "deepseek-chat",
			TimeoutSeconds: 60,
		},
		Voice: VoiceConfig{
			ConfirmationTTLMinutes: 60,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
