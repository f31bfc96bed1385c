// internal/models/notification.go
package models

// Role is the feed a user sees.
type Role string

const (
	RoleNone     Role = ""
	RoleDonor    Role = "donor"
	RoleReceiver Role = "receiver"
)

// DonorItem is one matching Request shown on the donor feed.
type DonorItem struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	BloodGroup       string      `json:"bloodGroup"`
	BloodUnits       string      `json:"bloodUnits"`
	City             string      `json:"city"`
	Purpose          string      `json:"purpose"`
	Hospital         string      `json:"hospital"`
	Mobile           string      `json:"mobile"`
	RequiredDateTime interface{} `json:"requiredDateTime"`
	CreatedAt        interface{} `json:"createdAt"`
	Status           string      `json:"status"`
	UID              string      `json:"uid"`
	FormattedDate    string      `json:"formattedDate"`
	IsNew            bool        `json:"isNew"`
	IsHighlighted    bool        `json:"isHighlighted"`
}

// RequestSummary is the parent Request snapshot carried by a ReceiverItem.
type RequestSummary struct {
	PatientName           string `json:"patientName"`
	ContactMobile         string `json:"contactMobile"`
	Purpose               string `json:"purpose"`
	BloodGroup            string `json:"bloodGroup"`
	BloodUnits            string `json:"bloodUnits"`
	City                  string `json:"city"`
	Hospital              string `json:"hospital"`
	FormattedRequiredTime string `json:"formattedRequiredTime"`
	Status                string `json:"status"`
}

// ReceiverItem is one donor Response shown on the receiver feed. ID is
// "{requestId}_{index}" and is stable while responses stay append-only.
type ReceiverItem struct {
	ID                    string         `json:"id"`
	RequestID             string         `json:"requestId"`
	DonorUID              string         `json:"donorUid"`
	DonorName             string         `json:"donorName"`
	DonorMobile           string         `json:"donorMobile"`
	DonorBloodGroup       string         `json:"donorBloodGroup"`
	DonorCity             string         `json:"donorCity"`
	Status                string         `json:"status"`
	RespondedAt           interface{}    `json:"respondedAt"`
	SeenByReceiver        bool           `json:"seenByReceiver"`
	FormattedResponseTime string         `json:"formattedResponseTime"`
	Request               RequestSummary `json:"requestData"`
	IsHighlighted         bool           `json:"isHighlighted"`
}

// HighlightKey spotlights an item the user navigated to directly.
type HighlightKey struct {
	RequestID string `json:"highlightRequestId"`
	DonorName string `json:"donorName"`
	Status    string `json:"status"`
}

func (h HighlightKey) IsZero() bool {
	return h == HighlightKey{}
}
