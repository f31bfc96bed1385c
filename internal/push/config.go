// internal/push/config.go
package push

import "time"

type Config struct {
	Enabled       bool
	AWSRegion     string
	TokenTable    string
	TokenCacheTTL time.Duration
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Enabled:       false,
		AWSRegion:     "us-east-1",
		TokenTable:    "user_push_tokens",
		TokenCacheTTL: time.Hour,
		Timeout:       10 * time.Second,
	}
}
