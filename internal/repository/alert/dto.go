package alert

import (
	"strconv"
	"time"

	domalert "github.com/caselens/lexalert/internal/domain/alert"
)

// buildHashFields flattens an alert into a Redis hash.
func buildHashFields(a domalert.Alert) map[string]string {
	m := map[string]string{
		"user_id":      a.UserID(),
		"name":         a.Name(),
		"query":        a.Query(),
		"rate":         string(a.Rate()),
		"type":         string(a.Type()),
		"secret_key":   a.SecretKey(),
		"valid":        boolField(a.Valid()),
		"date_created": strconv.FormatInt(a.CreatedAt().Unix(), 10),
	}
	if !a.LastHitAt().IsZero() {
		m["date_last_hit"] = strconv.FormatInt(a.LastHitAt().Unix(), 10)
	}
	return m
}

// parseHashFields rebuilds an alert from its hash. The criteria string is
// re-validated, so a record stored under an older grammar can fail here.
func parseHashFields(id string, m map[string]string) (domalert.Alert, error) {
	return domalert.Reconstruct(
		id,
		m["user_id"],
		m["name"],
		m["query"],
		domalert.Rate(m["rate"]),
		m["secret_key"],
		m["valid"] != "0",
		epochField(m["date_created"]),
		epochField(m["date_last_hit"]),
	)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func epochField(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
