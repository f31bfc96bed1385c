// internal/feed/donormatch/models.go
package donormatch

// Params selects the Requests a donor is matched against.
type Params struct {
	UID        string `json:"uid"`
	City       string `json:"city"`
	BloodGroup string `json:"bloodGroup"`
	Active     bool   `json:"active"`
}

// Complete reports whether the params can drive a subscription.
func (p Params) Complete() bool {
	return p.Active && p.UID != "" && p.City != "" && p.BloodGroup != ""
}
