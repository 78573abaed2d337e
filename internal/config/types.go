package config

// Config is the root configuration for glintbot.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Backends BackendsConfig `yaml:"backends,omitempty"`
	Voice    VoiceConfig    `yaml:"voice,omitempty"`
	Storage  StorageConfig  `yaml:"storage,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// GatewayConfig controls the webhook HTTP server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth holds the secrets each inbound surface is verified with.
type GatewayAuth struct {
	// Token authenticates the dashboard event feed and admin endpoints.
	Token string `yaml:"token,omitempty"`
	// VoiceSecret is the bearer token the voice platform sends.
	VoiceSecret string `yaml:"voiceSecret,omitempty"`
	// TelephonySecret keys the HMAC signature on telephony webhooks.
	TelephonySecret string `yaml:"telephonySecret,omitempty"`
	// ChatSecret keys the HMAC signature on chat webhooks.
	ChatSecret string `yaml:"chatSecret,omitempty"`
}

// LLMConfig selects the OpenAI-compatible model endpoint.
type LLMConfig struct {
	Provider       string   `yaml:"provider,omitempty"` // display name, e.g. "deepseek"
	BaseURL        string   `yaml:"baseUrl,omitempty"`
	APIKey         string   `yaml:"apiKey,omitempty"`
	Model          string   `yaml:"model,omitempty"`
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
	MaxTokens      int      `yaml:"maxTokens,omitempty"`
	Temperature    *float64 `yaml:"temperature,omitempty"`
}

// BackendEntry points at one external collaborator service.
type BackendEntry struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey,omitempty"`
}

// BackendsConfig lists the storefront and supporting services.
type BackendsConfig struct {
	Catalog  BackendEntry `yaml:"catalog,omitempty"`
	Orders   BackendEntry `yaml:"orders,omitempty"`
	Shipping BackendEntry `yaml:"shipping,omitempty"`
	FAQ      BackendEntry `yaml:"faq,omitempty"`
	Chat     BackendEntry `yaml:"chat,omitempty"`
}

// VoiceConfig configures the voice AI platform and confirmation calls.
type VoiceConfig struct {
	PlatformBaseURL        string `yaml:"platformBaseUrl,omitempty"`
	PlatformAPIKey         string `yaml:"platformApiKey,omitempty"`
	AgentID                string `yaml:"agentId,omitempty"`
	ConfirmationTTLMinutes int    `yaml:"confirmationTtlMinutes,omitempty"`
}

// StorageConfig controls the SQLite database location.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"` // defaults to <base>/data/glintbot.db
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
