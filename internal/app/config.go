package app

// DefaultGatewayURL is the chat gateway dialed by workers unless overridden.
const DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// DefaultConfigPath is the config document location unless overridden.
const DefaultConfigPath = "menagerie.yaml"

// Config holds the process-level options resolved from CLI flags.
type Config struct {
	// ConfigPath is the location of the persisted config document.
	ConfigPath string

	// GatewayURL overrides the chat gateway endpoint, mainly for tests and
	// local stubs.
	GatewayURL string

	// Debug enables debug-level logging.
	Debug bool

	// Silent suppresses all log output.
	Silent bool
}

// NewConfig creates a process config, filling empty fields with defaults.
func NewConfig(configPath string, debug, silent bool) *Config {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return &Config{
		ConfigPath: configPath,
		GatewayURL: DefaultGatewayURL,
		Debug:      debug,
		Silent:     silent,
	}
}
