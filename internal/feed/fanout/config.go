// internal/feed/fanout/config.go
package fanout

type Config struct {
	Collection string
}

func LoadConfig() *Config {
	return &Config{Collection: "Bloodreceiver"}
}
