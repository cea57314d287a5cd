package types

import "time"

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	APIURL            string        `yaml:"apiURL"`
	WebsocketURL      string        `yaml:"websocketURL"`
	APIKey            string        `yaml:"apiKey,omitempty"`
	SourceFormat      string        `yaml:"sourceFormat"`
	TargetFormat      string        `yaml:"targetFormat"`
	SessionPolicy     string        `yaml:"sessionPolicy"`               // per-attempt | long-lived
	TokenTimeout      time.Duration `yaml:"tokenTimeout,omitempty"`      // 0 waits forever
	CompletionTimeout time.Duration `yaml:"completionTimeout,omitempty"` // 0 waits forever
	PingInterval      time.Duration `yaml:"pingInterval"`
	ListLimit         int           `yaml:"listLimit"`
	ListRatePerSecond float64       `yaml:"listRatePerSecond"`
	Port              int           `yaml:"port"`
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log           string
	UseConfigPath string
	UseAPIURL     string
	UseWSURL      string
	UseAPIKey     string
	UsePort       int
	UsePolicy     string // per-attempt | long-lived
	File          string // when set, run a single upload and exit.
	To            string // target format for File
}

const (
	SessionPolicyPerAttempt = "per-attempt"
	SessionPolicyLongLived  = "long-lived"
)
