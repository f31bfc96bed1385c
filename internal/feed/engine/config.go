// internal/feed/engine/config.go
package engine

import (
	"time"

	"feed-sync/internal/common/config"
)

type Config struct {
	RequestsCollection string
	DonorsCollection   string
	UsersCollection    string
	SeenDebounce       time.Duration
	WriteTimeout       time.Duration
	Location           *time.Location
	Now                func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		RequestsCollection: "Bloodreceiver",
		DonorsCollection:   "BloodDonors",
		UsersCollection:    "users",
		SeenDebounce:       3 * time.Second,
		WriteTimeout:       10 * time.Second,
		Location:           time.Local,
		Now:                time.Now,
	}
}

// FromApp derives the engine settings from the application config.
func FromApp(cfg *config.Config) *Config {
	c := LoadConfig()
	if cfg == nil {
		return c
	}
	if cfg.Feed.Collections.Requests != "" {
		c.RequestsCollection = cfg.Feed.Collections.Requests
	}
	if cfg.Feed.Collections.Donors != "" {
		c.DonorsCollection = cfg.Feed.Collections.Donors
	}
	if cfg.Feed.Collections.Users != "" {
		c.UsersCollection = cfg.Feed.Collections.Users
	}
	if cfg.Feed.SeenDebounce > 0 {
		c.SeenDebounce = config.GetDuration(cfg.Feed.SeenDebounce)
	}
	if cfg.Feed.WriteTimeout > 0 {
		c.WriteTimeout = config.GetDuration(cfg.Feed.WriteTimeout)
	}
	return c
}
