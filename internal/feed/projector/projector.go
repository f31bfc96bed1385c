// Package projector turns cached Request fragments into the receiver feed.
package projector

import (
	"fmt"
	"sort"
	"time"

	"feed-sync/internal/feed/normalize"
	"feed-sync/internal/models"
)

const (
	fallbackDonorName    = "Anonymous Donor"
	fallbackPatientName  = "Anonymous Patient"
	fallbackCity         = "Not specified"
	fallbackHospital     = "Not specified"
	fallbackPurpose      = "Medical need"
	fallbackUnits        = "1"
	fallbackBloodGroup   = "Unknown"
	fallbackStatus       = "pending"
	fallbackResponseTime = "Recently"
	fallbackRequiredTime = "As soon as possible"
)

// Project flattens every valid embedded Response into one ReceiverItem, newest
// first. Responses without a usable timestamp sort last. The output depends
// only on the arguments.
func Project(fragments []models.Fragment, highlight models.HighlightKey, loc *time.Location) []models.ReceiverItem {
	items := make([]models.ReceiverItem, 0)
	for _, f := range fragments {
		items = append(items, projectFragment(f, highlight, loc)...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := respondedAt(items[i]), respondedAt(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// UnseenCount counts items the receiver has not yet seen.
func UnseenCount(items []models.ReceiverItem) int {
	n := 0
	for _, item := range items {
		if !item.SeenByReceiver {
			n++
		}
	}
	return n
}

func projectFragment(f models.Fragment, highlight models.HighlightKey, loc *time.Location) []models.ReceiverItem {
	data := f.Data
	raw, ok := data[models.FieldResponses].([]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}

	summary := models.RequestSummary{
		PatientName:           normalize.Text(normalize.FirstText(data[models.FieldName], data[models.FieldPatientName]), fallbackPatientName),
		ContactMobile:         normalize.Text(data[models.FieldMobile], ""),
		Purpose:               normalize.Text(data[models.FieldPurpose], fallbackPurpose),
		BloodGroup:            normalize.Text(data[models.FieldBloodGroup], fallbackBloodGroup),
		BloodUnits:            normalize.NumberText(data[models.FieldBloodUnits], fallbackUnits),
		City:                  normalize.Text(data[models.FieldCity], fallbackCity),
		Hospital:              normalize.Text(data[models.FieldHospital], fallbackHospital),
		FormattedRequiredTime: orDefault(normalize.FormatDateTime(data[models.FieldRequiredDateTime], loc), fallbackRequiredTime),
		Status:                normalize.Text(data[models.FieldStatus], fallbackStatus),
	}

	items := make([]models.ReceiverItem, 0, len(raw))
	// index is the position in the stored array, so ids stay stable when an
	// earlier entry is invalid.
	for index, entry := range raw {
		response, ok := entry.(map[string]interface{})
		if !ok || !normalize.HasEssentialResponseData(response, data) {
			continue
		}

		items = append(items, models.ReceiverItem{
			ID:                    fmt.Sprintf("%s_%d", f.RequestID, index),
			RequestID:             f.RequestID,
			DonorUID:              normalize.String(response["donorUid"]),
			DonorName:             normalize.Text(response["donorName"], fallbackDonorName),
			DonorMobile:           normalize.Text(response["donorMobile"], ""),
			DonorBloodGroup:       normalize.Text(normalize.FirstText(response["donorBloodGroup"], data[models.FieldBloodGroup]), fallbackBloodGroup),
			DonorCity:             normalize.Text(normalize.FirstText(response["donorCity"], data[models.FieldCity]), fallbackCity),
			Status:                normalize.Text(response["status"], fallbackStatus),
			RespondedAt:           response["respondedAt"],
			SeenByReceiver:        normalize.Bool(response["seenByReceiver"]),
			FormattedResponseTime: orDefault(normalize.FormatDateTime(response["respondedAt"], loc), fallbackResponseTime),
			Request:               summary,
			IsHighlighted:         isHighlighted(f.RequestID, response, highlight),
		})
	}
	return items
}

func isHighlighted(requestID string, response map[string]interface{}, key models.HighlightKey) bool {
	if key.RequestID == "" || requestID != key.RequestID {
		return false
	}
	return normalize.String(response["donorName"]) == key.DonorName &&
		normalize.String(response["status"]) == key.Status
}

// respondedAt treats a missing or unparseable time as the epoch.
func respondedAt(item models.ReceiverItem) time.Time {
	if t, ok := normalize.Time(item.RespondedAt); ok {
		return t
	}
	return time.Unix(0, 0)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
