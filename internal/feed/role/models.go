// internal/feed/role/models.go
package role

import "feed-sync/internal/models"

const (
	ListenerReceiver = "role-receiver"
	ListenerDonor    = "role-donor"
)

// State is the resolver's combined view of both signals.
type State struct {
	Role                models.Role          `json:"role"`
	HasReceiverRequests bool                 `json:"hasReceiverRequests"`
	DonorProfile        *models.DonorProfile `json:"donorProfile,omitempty"`
	// Ready is true once both subscriptions delivered at least once (or failed).
	Ready bool `json:"ready"`
}
