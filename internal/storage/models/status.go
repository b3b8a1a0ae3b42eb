package models

import (
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusUploading  DocumentStatus = "uploading"
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
	StatusSyncFailed DocumentStatus = "sync_failed"
	StatusSynced     DocumentStatus = "synced"
)

// ResetForRetry rewinds a failed document so its local file can be uploaded
// again. The stale remote id is cleared: the retry creates a fresh remote
// document.
func (d *Document) ResetForRetry() {
	d.Status = StatusUploading
	d.Progress = 0
	d.ProgressMsg = "preparing retry"
	d.RemoteID = ""
}

// MarkUploaded records a successful upload. An empty remoteID leaves the
// current one in place.
func (d *Document) MarkUploaded(remoteID string) {
	d.Status = StatusUploaded
	d.ProgressMsg = "upload succeeded"
	if remoteID != "" {
		d.RemoteID = remoteID
	}
	now := time.Now()
	d.LastSyncTime = &now
}

func (d *Document) MarkUploadFailed(reason string) {
	d.Status = StatusSyncFailed
	d.ProgressMsg = fmt.Sprintf("upload failed: %s", reason)
}

func (d *Document) StartProcessing() {
	d.Status = StatusProcessing
	d.Progress = 0
	d.ProgressMsg = "parsing started"
}

func (d *Document) StopProcessing() {
	d.Status = StatusCompleted
	d.ProgressMsg = "parsing cancelled"
}

// EligibleForChunkSync reports whether parsed chunks can be pulled for this
// document: parsing finished on the remote side and a remote id exists.
func (d *Document) EligibleForChunkSync() bool {
	return d.Status == StatusCompleted && d.RemoteID != "" && d.Progress >= 100
}
