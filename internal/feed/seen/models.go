// internal/feed/seen/models.go
package seen

import "feed-sync/internal/models"

// Write is one seen-state update against a Request.
type Write struct {
	RequestID string                 `json:"requestId"`
	Fields    map[string]interface{} `json:"fields"`
}

// Batch is everything one committer run writes.
type Batch struct {
	Role   models.Role `json:"role"`
	Writes []Write     `json:"writes"`
}

// Result reports the outcome of a run.
type Result struct {
	Ran      bool `json:"ran"`
	Written  int  `json:"written"`
	Failed   int  `json:"failed"`
	Complete bool `json:"complete"`
}
