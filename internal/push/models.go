// internal/push/models.go
package push

import "context"

const (
	TypeDonorResponse = "donor_response"

	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
	StatusNoToken  = "no_token"
)

// Message is a push notification addressed to one device token.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// Notifier delivers a push message. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, token string, msg Message) error
}

// TokenLookup resolves a user's push token. "" means the user has none.
type TokenLookup interface {
	FetchToken(ctx context.Context, uid string) (string, error)
}
