package analytics

import (
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
)

const (
	day           = 24 * time.Hour
	maxRange      = 366 * day
	defaultPreset = "30d"
)

var presets = map[string]time.Duration{
	"7d":  7 * day,
	"30d": 30 * day,
	"90d": 90 * day,
}

// resolveAnalyticsRange reads an explicit from/to window or a trailing preset
// ending at now. Bounds accept RFC 3339 timestamps or plain YYYY-MM-DD dates;
// a date-only "to" covers that whole day.
func resolveAnalyticsRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	query := r.URL.Query()
	rawFrom := strings.TrimSpace(query.Get("from"))
	rawTo := strings.TrimSpace(query.Get("to"))

	if rawFrom == "" && rawTo == "" {
		preset := strings.ToLower(strings.TrimSpace(query.Get("preset")))
		if preset == "" {
			preset = defaultPreset
		}
		span, ok := presets[preset]
		if !ok {
			return time.Time{}, time.Time{}, validationErr("invalid preset", "preset")
		}
		return now.Add(-span), now, nil
	}
	if rawFrom == "" || rawTo == "" {
		return time.Time{}, time.Time{}, validationErr("from and to must be provided together", "from")
	}

	start, _, err := parseBound(rawFrom)
	if err != nil {
		return time.Time{}, time.Time{}, validationErr("invalid from timestamp", "from")
	}
	end, dateOnly, err := parseBound(rawTo)
	if err != nil {
		return time.Time{}, time.Time{}, validationErr("invalid to timestamp", "to")
	}
	if dateOnly {
		end = end.Add(day)
	}

	switch {
	case end.Before(start):
		return time.Time{}, time.Time{}, validationErr("end must be after start", "to")
	case end.Sub(start) > maxRange:
		return time.Time{}, time.Time{}, validationErr("range must not exceed 366 days", "to")
	}
	return start, end, nil
}

func parseBound(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t.UTC(), false, err
}

func validationErr(msg, field string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
}
