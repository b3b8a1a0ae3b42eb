package mapper

import (
	"testing"

	"github.com/kbmirror/backend/internal/storage/models"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in   interface{}
		want models.DocumentStatus
	}{
		{0, models.StatusPending},
		{1, models.StatusProcessing},
		{2, models.StatusPending},
		{3, models.StatusCompleted},
		{4, models.StatusFailed},
		{float64(3), models.StatusCompleted},
		{"0", models.StatusPending},
		{"3", models.StatusCompleted},
		{" 4 ", models.StatusFailed},
		{"RUNNING", models.StatusProcessing},
		{"DONE", models.StatusCompleted},
		{"FAIL", models.StatusFailed},
		{"CANCEL", models.StatusPending},
		{"UNSTART", models.StatusPending},
		{"parsing", models.StatusProcessing},
		{"Parsed", models.StatusCompleted},
		{"parse_failed", models.StatusFailed},
		{"sync_failed", models.StatusSyncFailed},
		{"synced", models.StatusSynced},
		{"uploaded", models.StatusUploaded},
	}

	for _, tc := range cases {
		if got := NormalizeStatus(tc.in); got != tc.want {
			t.Errorf("NormalizeStatus(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeStatusUnknownFallsBackToPending(t *testing.T) {
	for _, in := range []interface{}{"bogus", "99", 7, -1, nil, true, []string{"x"}} {
		if got := NormalizeStatus(in); got != models.StatusPending {
			t.Errorf("NormalizeStatus(%v) = %s, want pending", in, got)
		}
	}
}

func TestNormalizeProgress(t *testing.T) {
	cases := []struct {
		in    interface{}
		prior float64
		want  float64
	}{
		{0.5, 10, 50},
		{1.0, 10, 100},
		{0, 10, 0},
		{42.5, 10, 42.5},
		{100, 10, 100},
		{"0.25", 10, 25},
		{"80", 10, 80},
		{-3, 10, 10},
		{250, 10, 10},
		{"not a number", 10, 10},
		{nil, 10, 10},
	}

	for _, tc := range cases {
		if got := NormalizeProgress(tc.in, tc.prior); got != tc.want {
			t.Errorf("NormalizeProgress(%v, %v) = %v, want %v", tc.in, tc.prior, got, tc.want)
		}
	}
}
