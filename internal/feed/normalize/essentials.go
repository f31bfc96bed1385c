// internal/feed/normalize/essentials.go
package normalize

import "feed-sync/internal/models"

// HasEssentialRequestData reports whether a Request carries a city and blood
// group. Requests without them are excluded from the donor projection.
func HasEssentialRequestData(data map[string]interface{}) bool {
	if data == nil {
		return false
	}
	return HasText(data[models.FieldCity]) && HasText(data[models.FieldBloodGroup])
}

// HasEssentialResponseData reports whether an embedded Response has a status
// and a blood group of its own or from its parent Request.
func HasEssentialResponseData(response, parent map[string]interface{}) bool {
	if response == nil {
		return false
	}
	if !HasText(response["status"]) {
		return false
	}
	return HasText(response["donorBloodGroup"]) || HasText(parent[models.FieldBloodGroup])
}

// MissingEssentials names the essential fields absent from data.
func MissingEssentials(data map[string]interface{}) []string {
	var missing []string
	if !HasText(data[models.FieldCity]) {
		missing = append(missing, models.FieldCity)
	}
	if !HasText(data[models.FieldBloodGroup]) {
		missing = append(missing, models.FieldBloodGroup)
	}
	return missing
}
