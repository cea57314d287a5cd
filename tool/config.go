package tool

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moyoez/blendconv/types"
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
)

func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		APIURL:            "http://127.0.0.1:8080/v1",
		WebsocketURL:      "ws://127.0.0.1:8080/ws",
		SourceFormat:      "blend",
		TargetFormat:      "glb",
		SessionPolicy:     types.SessionPolicyPerAttempt,
		PingInterval:      30 * time.Second, // API gateways drop idle sockets after ~10 minutes
		ListLimit:         12,
		ListRatePerSecond: 5,
		Port:              53318,
	}
}

// LoadConfig reads path (default ./config.yaml), writing a default file when none exists.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %v", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			CurrentConfig = cfg
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return cfg, err
	}

	CurrentConfig = cfg
	return cfg, nil
}

// ApplyFlags overrides file values with non-empty CLI flags.
func ApplyFlags(cfg *types.AppConfig, flags types.Config) error {
	if flags.UseAPIURL != "" {
		cfg.APIURL = flags.UseAPIURL
	}
	if flags.UseWSURL != "" {
		cfg.WebsocketURL = flags.UseWSURL
	}
	if flags.UseAPIKey != "" {
		cfg.APIKey = flags.UseAPIKey
	}
	if flags.UsePort > 0 {
		cfg.Port = flags.UsePort
	}
	if flags.UsePolicy != "" {
		cfg.SessionPolicy = flags.UsePolicy
	}
	if flags.To != "" {
		cfg.TargetFormat = flags.To
	}
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	CurrentConfig = *cfg
	return nil
}

func ValidateConfig(cfg *types.AppConfig) error {
	if cfg.APIURL == "" {
		return fmt.Errorf("apiURL is required")
	}
	if cfg.WebsocketURL == "" {
		return fmt.Errorf("websocketURL is required")
	}
	switch cfg.SessionPolicy {
	case types.SessionPolicyPerAttempt, types.SessionPolicyLongLived:
	case "":
		cfg.SessionPolicy = types.SessionPolicyPerAttempt
	default:
		return fmt.Errorf("unknown sessionPolicy %q (want %s or %s)", cfg.SessionPolicy, types.SessionPolicyPerAttempt, types.SessionPolicyLongLived)
	}
	if cfg.TokenTimeout < 0 || cfg.CompletionTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 12
	}
	return ValidateFormats(cfg.SourceFormat, cfg.TargetFormat)
}

func writeDefaultConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func GetCurrentConfig() *types.AppConfig {
	return &CurrentConfig
}
