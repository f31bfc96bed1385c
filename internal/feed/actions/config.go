// internal/feed/actions/config.go
package actions

import "time"

type Config struct {
	Collection  string
	Timeout     time.Duration
	PushTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Collection:  "Bloodreceiver",
		Timeout:     10 * time.Second,
		PushTimeout: 5 * time.Second,
	}
}
