// internal/feed/role/config.go
package role

type Config struct {
	RequestsCollection string
	DonorsCollection   string
	// ExternalReceiverSignal skips the receiver query. The owner already
	// listens on it and reports through SetReceiverSignal.
	ExternalReceiverSignal bool
}

func LoadConfig() *Config {
	return &Config{
		RequestsCollection: "Bloodreceiver",
		DonorsCollection:   "BloodDonors",
	}
}
