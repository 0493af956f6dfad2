package age

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		ago  time.Duration
		want Bucket
	}{
		{"just now", 0, Today},
		{"23 hours", 23 * time.Hour, Today},
		{"exactly one day", 24 * time.Hour, Recent},
		{"exactly seven days", 7 * day, Recent},
		{"seven and a half days", 7*day + 12*time.Hour, Recent},
		{"exactly eight days", 8 * day, Medium},
		{"exactly thirty days", 30 * day, Medium},
		{"thirty one days", 31 * day, Old},
		{"a year", 365 * day, Old},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(ago(tc.ago), true, now)
			assert.Equal(t, tc.want, got.Bucket)
		})
	}
}

func TestClassify_SpecExample(t *testing.T) {
	created := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	got := Classify(&created, true, now)
	assert.Equal(t, Recent, got.Bucket)
	assert.InDelta(t, 7.0, got.AgeInDays, 1e-9)
	assert.Equal(t, "1 week", got.Label)
}

func TestClassify_Unknown(t *testing.T) {
	assert.Equal(t, Unknown, Classify(nil, false, now).Bucket)
	assert.Equal(t, Unknown, Classify(nil, true, now).Bucket)
	assert.Equal(t, Unknown, Classify(ago(40*day), false, now).Bucket)

	future := now.Add(time.Hour)
	assert.Equal(t, Unknown, Classify(&future, true, now).Bucket)
	assert.Equal(t, -1, Classify(nil, false, now).Days())
}

func TestClassify_FractionalAge(t *testing.T) {
	got := Classify(ago(6*time.Hour), true, now)
	assert.Equal(t, Today, got.Bucket)
	assert.InDelta(t, 0.25, got.AgeInDays, 1e-9)
	assert.Equal(t, 0, got.Days())
}

func TestEstimate_IgnoresVerification(t *testing.T) {
	got := Estimate(*ago(40 * day), now)
	assert.Equal(t, Old, got.Bucket)
	assert.Equal(t, 40, got.Days())
}

func TestLabel(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{-1, "Unknown"},
		{0, "Today"},
		{1, "Yesterday"},
		{3, "3 days"},
		{7, "1 week"},
		{20, "2 weeks"},
		{28, "4 weeks"},
		{29, "4 weeks"},
		{30, "1 month"},
		{95, "3 months"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Label(tc.days), "days=%d", tc.days)
	}
}
