package normalize

import (
	"testing"
	"time"

	apperrors "feed-sync/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		fallback string
		want     string
	}{
		{"nil", nil, "Anonymous Patient", "Anonymous Patient"},
		{"blank", "   ", "Medical need", "Medical need"},
		{"trimmed", "  Ruby Hall  ", "", "Ruby Hall"},
		{"number", float64(42), "x", "42"},
		{"bool", true, "x", "true"},
		{"object", map[string]interface{}{}, "Unknown", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.value, tt.fallback))
		})
	}
}

func TestNumberText(t *testing.T) {
	assert.Equal(t, "1", NumberText(nil, "1"))
	assert.Equal(t, "2", NumberText(float64(2), "1"))
	assert.Equal(t, "2.5", NumberText(2.5, "1"))
	assert.Equal(t, "3", NumberText(" 3 ", "1"))
	assert.Equal(t, "1", NumberText("", "1"))
	assert.Equal(t, "1", NumberText(true, "1"))
}

func TestHasTextAndFirstText(t *testing.T) {
	assert.True(t, HasText("O+"))
	assert.False(t, HasText("  "))
	assert.False(t, HasText(7.0))
	assert.Equal(t, "b", FirstText("", nil, "b", "c"))
	assert.Nil(t, FirstText("", " "))
}

func TestTime(t *testing.T) {
	want := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		ok    bool
	}{
		{"rfc3339", "2026-03-14T09:05:00Z", true},
		{"millis", float64(want.UnixMilli()), true},
		{"firestore object", map[string]interface{}{"seconds": float64(want.Unix()), "nanoseconds": float64(0)}, true},
		{"time value", want, true},
		{"garbage", "next tuesday", false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Time(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestFormatDateTime(t *testing.T) {
	assert.Equal(t, "3/14/2026 at 09:05 AM", FormatDateTime("2026-03-14T09:05:00Z", time.UTC))
	assert.Equal(t, "3/14/2026 at 02:35 PM", FormatDateTime("2026-03-14T09:05:00Z", time.FixedZone("IST", 5*3600+1800)))
	assert.Equal(t, "tomorrow morning", FormatDateTime("tomorrow morning", time.UTC))
	assert.Equal(t, "", FormatDateTime(nil, time.UTC))
	assert.Equal(t, "", FormatDateTime("", time.UTC))
	assert.Equal(t, "", FormatDateTime(map[string]interface{}{"x": 1.0}, time.UTC))
}

func TestStringSet(t *testing.T) {
	set := StringSet([]interface{}{"a", 1.0, "b"})
	assert.Len(t, set, 2)
	_, ok := set["a"]
	assert.True(t, ok)
	assert.Empty(t, StringSet("not a list"))
}

func TestDialNumber(t *testing.T) {
	uri, err := DialNumber("+91 (98) 765-43210")
	require.NoError(t, err)
	assert.Equal(t, "tel:+919876543210", uri)

	_, err = DialNumber("")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDialNumberMissing))
}
