package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"
)

// nullString maps "" to NULL so that UNIQUE(scope, remote_id) only applies to
// rows that actually carry a remote id.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func fromJSON(data string, v interface{}) {
	if data == "" {
		return
	}
	json.Unmarshal([]byte(data), v)
}
