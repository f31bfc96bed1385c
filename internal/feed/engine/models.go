// internal/feed/engine/models.go
package engine

import "feed-sync/internal/models"

// View is what the notifications screen should render.
type View string

const (
	ViewSignedOut          View = "signed-out"
	ViewLoading            View = "loading"
	ViewPreparingMatches   View = "preparing-matches"
	ViewPreparingResponses View = "preparing-responses"
	ViewProfileIncomplete  View = "profile-incomplete"
	ViewDonor              View = "donor"
	ViewReceiver           View = "receiver"
	ViewEmpty              View = "empty"
)

// State is an immutable snapshot of the feed.
type State struct {
	UID           string                `json:"uid"`
	Role          models.Role           `json:"role"`
	View          View                  `json:"view"`
	DonorItems    []models.DonorItem    `json:"donorItems"`
	ReceiverItems []models.ReceiverItem `json:"receiverItems"`
	UnseenCount   int                   `json:"unseenCount"`
	Profile       models.UserProfile    `json:"profile"`
	DonorProfile  *models.DonorProfile  `json:"donorProfile,omitempty"`
	Highlight     models.HighlightKey   `json:"highlight"`
	// Tracked lists the Request ids whose per-document listener is live.
	Tracked []string `json:"tracked"`
}
