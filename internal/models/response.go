// internal/models/response.go
package models

// Response is one donor's reply embedded in a Request's responses array.
// Entries are append-only; seenByReceiver is the only field the receiver flips.
type Response struct {
	DonorUID        string `json:"donorUid"`
	DonorName       string `json:"donorName"`
	DonorMobile     string `json:"donorMobile"`
	Status          string `json:"status"`
	RespondedAt     string `json:"respondedAt"`
	SeenByReceiver  bool   `json:"seenByReceiver"`
	DonorBloodGroup string `json:"donorBloodGroup"`
	DonorCity       string `json:"donorCity"`
}

// ToMap renders the response the way it is stored inside the document.
func (r Response) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"donorUid":        r.DonorUID,
		"donorName":       r.DonorName,
		"donorMobile":     r.DonorMobile,
		"status":          r.Status,
		"respondedAt":     r.RespondedAt,
		"seenByReceiver":  r.SeenByReceiver,
		"donorBloodGroup": r.DonorBloodGroup,
		"donorCity":       r.DonorCity,
	}
}
