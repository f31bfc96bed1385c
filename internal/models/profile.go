// internal/models/profile.go
package models

// DonorProfile is a user's donor registration in BloodDonors.
type DonorProfile struct {
	ID         string `json:"id"`
	UID        string `json:"uid"`
	City       string `json:"city"`
	BloodGroup string `json:"bloodGroup"`
}

// UserProfile is the account document at users/{uid}.
type UserProfile struct {
	Name       string `json:"name"`
	Mobile     string `json:"mobile"`
	Phone      string `json:"phone"`
	City       string `json:"city"`
	BloodGroup string `json:"bloodGroup"`
}

// ContactNumber prefers mobile over phone.
func (p UserProfile) ContactNumber() string {
	if p.Mobile != "" {
		return p.Mobile
	}
	return p.Phone
}
