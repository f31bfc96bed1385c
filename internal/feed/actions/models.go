// internal/feed/actions/models.go
package actions

import "feed-sync/internal/models"

const (
	DecisionAccept  = "accepted"
	DecisionDecline = "declined"

	defaultDonorName = "A donor"
)

// Input is one donor decision on a matched Request.
type Input struct {
	Decision  string `json:"decision"`
	RequestID string `json:"requestId"`
	// Item is the donor feed entry for RequestID; nil when it is no longer listed.
	Item     *models.DonorItem  `json:"item,omitempty"`
	DonorUID string             `json:"donorUid"`
	Profile  models.UserProfile `json:"profile"`
	// Fallbacks from the DonorProfile when the user profile lacks them.
	City       string `json:"city"`
	BloodGroup string `json:"bloodGroup"`
}

type Output struct {
	RequestID      string          `json:"requestId"`
	Response       models.Response `json:"response"`
	Message        string          `json:"message"`
	NotificationID string          `json:"notificationId"`
	PushStatus     string          `json:"pushStatus"`
}

// Verb is the word used in user-facing failure messages.
func Verb(decision string) string {
	if decision == DecisionAccept {
		return "accept"
	}
	return "decline"
}

func successMessage(decision string) string {
	if decision == DecisionAccept {
		return "You have accepted the blood donation request!"
	}
	return "You have declined the blood donation request."
}
