// internal/feed/donormatch/project.go
package donormatch

import (
	"sort"
	"time"

	"feed-sync/internal/feed/normalize"
	"feed-sync/internal/models"
	"feed-sync/internal/store"
)

const (
	fallbackName         = "Anonymous Patient"
	fallbackBloodGroup   = "Unknown"
	fallbackUnits        = "1"
	fallbackCity         = "Not specified"
	fallbackPurpose      = "Medical need"
	fallbackStatus       = models.StatusPending
	fallbackRequiredTime = "As soon as possible"
)

// Project turns a match-query snapshot into the donor feed for uid, soonest
// required first. Requests without a usable required time sort as if due now.
func Project(docs []store.Document, uid, highlightID string, now time.Time, loc *time.Location) []models.DonorItem {
	type keyed struct {
		item models.DonorItem
		due  time.Time
	}
	rows := make([]keyed, 0, len(docs))

	for _, doc := range docs {
		data := doc.Data
		if !normalize.HasEssentialRequestData(data) {
			continue
		}
		if HasResponded(data, uid) {
			continue
		}

		_, seen := normalize.StringSet(data[models.FieldSeenBy])[uid]
		formatted := normalize.FormatDateTime(data[models.FieldRequiredDateTime], loc)
		if formatted == "" {
			formatted = fallbackRequiredTime
		}

		due, ok := normalize.Time(data[models.FieldRequiredDateTime])
		if !ok {
			due = now
		}

		rows = append(rows, keyed{
			due: due,
			item: models.DonorItem{
				ID:               doc.ID,
				Name:             normalize.Text(normalize.FirstText(data[models.FieldName], data[models.FieldPatientName]), fallbackName),
				BloodGroup:       normalize.Text(data[models.FieldBloodGroup], fallbackBloodGroup),
				BloodUnits:       normalize.NumberText(data[models.FieldBloodUnits], fallbackUnits),
				City:             normalize.Text(data[models.FieldCity], fallbackCity),
				Purpose:          normalize.Text(data[models.FieldPurpose], fallbackPurpose),
				Hospital:         normalize.Text(data[models.FieldHospital], ""),
				Mobile:           normalize.Text(data[models.FieldMobile], ""),
				RequiredDateTime: data[models.FieldRequiredDateTime],
				CreatedAt:        data[models.FieldCreatedAt],
				Status:           normalize.Text(data[models.FieldStatus], fallbackStatus),
				UID:              normalize.String(data[models.FieldUID]),
				FormattedDate:    formatted,
				IsNew:            !seen,
				IsHighlighted:    highlightID != "" && doc.ID == highlightID,
			},
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].due.Equal(rows[j].due) {
			return rows[i].due.Before(rows[j].due)
		}
		return rows[i].item.ID < rows[j].item.ID
	})

	items := make([]models.DonorItem, len(rows))
	for i, r := range rows {
		items[i] = r.item
	}
	return items
}

// HasResponded reports whether uid already has a Response on the Request.
func HasResponded(data map[string]interface{}, uid string) bool {
	if uid == "" {
		return false
	}
	for _, r := range models.ResponsesOf(data) {
		if normalize.String(r["donorUid"]) == uid {
			return true
		}
	}
	return false
}

// UnseenCount counts items flagged new.
func UnseenCount(items []models.DonorItem) int {
	n := 0
	for _, item := range items {
		if item.IsNew {
			n++
		}
	}
	return n
}
