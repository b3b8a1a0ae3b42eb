package mapper

import (
	"strings"

	"github.com/kbmirror/backend/internal/storage/models"
)

// The remote service reports document status in three shapes: an integer code
// 0-4, the string form of that integer, or a named string. namedStatuses and
// codeStatuses map all of them onto the local enum.
var namedStatuses = map[string]models.DocumentStatus{
	"pending":      models.StatusPending,
	"uploading":    models.StatusUploading,
	"uploaded":     models.StatusUploaded,
	"processing":   models.StatusProcessing,
	"parsing":      models.StatusProcessing,
	"completed":    models.StatusCompleted,
	"parsed":       models.StatusCompleted,
	"failed":       models.StatusFailed,
	"parse_failed": models.StatusFailed,
	"synced":       models.StatusSynced,
	"sync_failed":  models.StatusSyncFailed,
	"unstart":      models.StatusPending,
	"running":      models.StatusProcessing,
	"cancel":       models.StatusPending,
	"done":         models.StatusCompleted,
	"fail":         models.StatusFailed,
}

// Remote run codes: 0 not started, 1 running, 2 cancelled, 3 done, 4 failed.
// A cancelled parse is restartable, so 2 maps back to pending.
var codeStatuses = map[int]models.DocumentStatus{
	0: models.StatusPending,
	1: models.StatusProcessing,
	2: models.StatusPending,
	3: models.StatusCompleted,
	4: models.StatusFailed,
}

// NormalizeStatus maps any remote status representation onto the local enum.
// Unknown values fall back to pending rather than failing: the remote side
// adds status values without notice, and a stale-but-valid local status beats
// an aborted sync. The fallback is deliberately centralized here.
func NormalizeStatus(v interface{}) models.DocumentStatus {
	switch s := v.(type) {
	case string:
		name := strings.ToLower(strings.TrimSpace(s))
		if status, ok := namedStatuses[name]; ok {
			return status
		}
		if code, ok := intValue(name); ok {
			if status, ok := codeStatuses[code]; ok {
				return status
			}
		}
		return models.StatusPending
	default:
		if code, ok := intValue(v); ok {
			if status, ok := codeStatuses[code]; ok {
				return status
			}
		}
		return models.StatusPending
	}
}

// NormalizeProgress coerces a remote progress value onto the 0-100 scale.
// Fractional values (0-1) are scaled up; values outside 0-100 and non-numeric
// values are rejected, keeping prior.
func NormalizeProgress(v interface{}, prior float64) float64 {
	f, ok := floatValue(v)
	if !ok {
		return prior
	}
	if f < 0 || f > 100 {
		return prior
	}
	if f <= 1 {
		return f * 100
	}
	return f
}
