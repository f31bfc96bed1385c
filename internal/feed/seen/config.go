// internal/feed/seen/config.go
package seen

import "time"

type Config struct {
	Collection string
	Debounce   time.Duration
	Timeout    time.Duration
	Now        func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		Collection: "Bloodreceiver",
		Debounce:   3 * time.Second,
		Timeout:    10 * time.Second,
		Now:        time.Now,
	}
}
