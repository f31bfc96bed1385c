// internal/models/request.go
package models

// Field names of a Request document.
const (
	FieldUID              = "uid"
	FieldName             = "name"
	FieldPatientName      = "patientName"
	FieldCity             = "city"
	FieldBloodGroup       = "bloodGroup"
	FieldBloodUnits       = "bloodUnits"
	FieldPurpose          = "purpose"
	FieldHospital         = "hospital"
	FieldMobile           = "mobile"
	FieldRequiredDateTime = "requiredDateTime"
	FieldCreatedAt        = "createdAt"
	FieldStatus           = "status"
	FieldSeenBy           = "seenBy"
	FieldResponses        = "responses"
	FieldRespondedBy      = "respondedBy"
	FieldLastUpdated      = "lastUpdated"
)

// Request statuses.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusCompleted = "completed"
	StatusDeclined  = "declined"
)

// Fragment is the raw cached body of one Request document as last observed
// by its dedicated listener.
type Fragment struct {
	RequestID string                 `json:"requestId"`
	Data      map[string]interface{} `json:"data"`
}

// Responses returns the embedded responses that decode as objects. Entries of
// any other shape are skipped.
func (f Fragment) Responses() []map[string]interface{} {
	return ResponsesOf(f.Data)
}

// ResponsesOf extracts the object entries of data["responses"].
func ResponsesOf(data map[string]interface{}) []map[string]interface{} {
	raw, ok := data[FieldResponses].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}
