package models

import (
	"strings"
	"testing"
)

func TestResetForRetry(t *testing.T) {
	doc := &Document{
		Status:      StatusSyncFailed,
		Progress:    62,
		ProgressMsg: "upload failed: timeout",
		RemoteID:    "stale",
	}

	doc.ResetForRetry()

	if doc.Status != StatusUploading {
		t.Fatalf("expected uploading, got %s", doc.Status)
	}
	if doc.Progress != 0 {
		t.Fatalf("expected progress reset, got %v", doc.Progress)
	}
	if doc.RemoteID != "" {
		t.Fatalf("expected stale remote id cleared, got %q", doc.RemoteID)
	}
	if doc.ProgressMsg != "preparing retry" {
		t.Fatalf("unexpected progress message %q", doc.ProgressMsg)
	}
}

func TestMarkUploaded(t *testing.T) {
	doc := &Document{Status: StatusUploading}
	doc.MarkUploaded("remote-1")

	if doc.Status != StatusUploaded || doc.RemoteID != "remote-1" {
		t.Fatalf("unexpected state: %s / %q", doc.Status, doc.RemoteID)
	}
	if doc.LastSyncTime == nil {
		t.Fatal("expected sync time stamped")
	}

	// An empty remote id from the response keeps the current binding.
	doc.MarkUploaded("")
	if doc.RemoteID != "remote-1" {
		t.Fatalf("empty remote id must not clear binding, got %q", doc.RemoteID)
	}
}

func TestMarkUploadFailedCarriesReason(t *testing.T) {
	doc := &Document{Status: StatusUploading}
	doc.MarkUploadFailed("connection refused")

	if doc.Status != StatusSyncFailed {
		t.Fatalf("expected sync_failed, got %s", doc.Status)
	}
	if !strings.Contains(doc.ProgressMsg, "connection refused") {
		t.Fatalf("expected reason in message, got %q", doc.ProgressMsg)
	}
}

func TestParseTransitions(t *testing.T) {
	doc := &Document{Status: StatusUploaded, Progress: 100}

	doc.StartProcessing()
	if doc.Status != StatusProcessing || doc.Progress != 0 {
		t.Fatalf("unexpected processing state: %s at %v", doc.Status, doc.Progress)
	}

	doc.StopProcessing()
	if doc.Status != StatusCompleted {
		t.Fatalf("expected completed after cancel, got %s", doc.Status)
	}
}

func TestEligibleForChunkSync(t *testing.T) {
	cases := []struct {
		doc  Document
		want bool
	}{
		{Document{Status: StatusCompleted, RemoteID: "r", Progress: 100}, true},
		{Document{Status: StatusCompleted, RemoteID: "r", Progress: 99}, false},
		{Document{Status: StatusCompleted, RemoteID: "", Progress: 100}, false},
		{Document{Status: StatusProcessing, RemoteID: "r", Progress: 100}, false},
		{Document{Status: StatusFailed, RemoteID: "r", Progress: 100}, false},
	}
	for i, tc := range cases {
		if got := tc.doc.EligibleForChunkSync(); got != tc.want {
			t.Errorf("case %d: eligible = %v, want %v", i, got, tc.want)
		}
	}
}
