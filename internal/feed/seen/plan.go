// internal/feed/seen/plan.go
package seen

import (
	"feed-sync/internal/feed/normalize"
	"feed-sync/internal/models"
	"feed-sync/internal/store"
)

// PlanDonor unions uid into seenBy of every item still flagged new.
func PlanDonor(uid string, items []models.DonorItem) Batch {
	b := Batch{Role: models.RoleDonor}
	if uid == "" {
		return b
	}
	for _, item := range items {
		if !item.IsNew {
			continue
		}
		b.Writes = append(b.Writes, Write{
			RequestID: item.ID,
			Fields:    map[string]interface{}{models.FieldSeenBy: store.ArrayUnion(uid)},
		})
	}
	return b
}

// PlanReceiver rewrites the responses array of every fragment holding an
// unseen response, with seenByReceiver forced true on each object entry.
// Entries of any other shape are written back untouched.
func PlanReceiver(fragments []models.Fragment) Batch {
	b := Batch{Role: models.RoleReceiver}
	for _, f := range fragments {
		raw, ok := f.Data[models.FieldResponses].([]interface{})
		if !ok || len(raw) == 0 {
			continue
		}
		unseen := false
		updated := make([]interface{}, len(raw))
		for i, entry := range raw {
			r, ok := entry.(map[string]interface{})
			if !ok {
				updated[i] = entry
				continue
			}
			if !normalize.Bool(r["seenByReceiver"]) {
				unseen = true
			}
			c := store.CloneData(r)
			c["seenByReceiver"] = true
			updated[i] = c
		}
		if !unseen {
			continue
		}
		b.Writes = append(b.Writes, Write{
			RequestID: f.RequestID,
			Fields:    map[string]interface{}{models.FieldResponses: updated},
		})
	}
	return b
}
