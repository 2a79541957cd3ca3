package types

import "time"

// BookingQueryRequest bounds a dashboard query. OwnerID narrows it to one owner.
type BookingQueryRequest struct {
	OwnerID string
	Start   time.Time
	End     time.Time
}

// TimeSeriesPoint is one day of a series.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// LabelValue is a top-N entry.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// BookingQueryResponse carries the booking KPIs for the admin dashboard.
type BookingQueryResponse struct {
	Requests        []TimeSeriesPoint `json:"requests"`
	CompletedVolume []TimeSeriesPoint `json:"completed_volume_cents"`
	Commission      []TimeSeriesPoint `json:"commission_cents"`
	TopOwners       []LabelValue      `json:"top_owners"`
	StatusBreakdown []LabelValue      `json:"status_breakdown"`
	CompletionRate  float64           `json:"completion_rate"`
}
