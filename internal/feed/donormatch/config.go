// internal/feed/donormatch/config.go
package donormatch

import "time"

type Config struct {
	Collection string
	Location   *time.Location
	Now        func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		Collection: "Bloodreceiver",
		Location:   time.Local,
		Now:        time.Now,
	}
}
