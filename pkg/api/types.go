package api

import (
	"math"
	"time"

	"github.com/telecore/telecore-go/pkg/point"
	"github.com/telecore/telecore-go/pkg/service"
)

// PointResponse is one point.
type PointResponse struct {
	Type      string   `json:"type"`
	Index     uint16   `json:"index"`
	Value     any      `json:"value"`
	Quality   uint8    `json:"quality"`
	Flags     []string `json:"flags"`
	Stale     bool     `json:"stale"`
	Timestamp *int64   `json:"timestamp_ms,omitempty"`
}

// TableResponse is an ordered table snapshot.
type TableResponse struct {
	Type   string          `json:"type"`
	Count  int             `json:"count"`
	Points []PointResponse `json:"points"`
}

// TableSummary is one row of GET /points.
type TableSummary struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// HistoryResponse is one stored event.
type HistoryResponse struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	Index      uint16    `json:"index"`
	Value      any       `json:"value"`
	OldQuality uint8     `json:"old_quality"`
	Quality    uint8     `json:"quality"`
	Reasons    string    `json:"reasons"`
	Timestamp  *int64    `json:"timestamp_ms,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ChannelLister reports session status. Implemented by service.Manager.
type ChannelLister interface {
	Channels() []service.ChannelStatus
}

func toPointResponse(t point.Type, p point.Point) PointResponse {
	r := PointResponse{
		Type:    t.String(),
		Index:   p.Index,
		Value:   jsonValue(p.Value),
		Quality: p.Quality.Bits(),
		Flags:   p.Quality.Names(),
		Stale:   p.IsStale(),
	}
	if r.Flags == nil {
		r.Flags = []string{}
	}
	if p.Timestamp.IsSet() {
		ms := int64(p.Timestamp)
		r.Timestamp = &ms
	}
	return r
}

// jsonValue renders non-finite floats as strings.
func jsonValue(v point.Value) any {
	if f, ok := v.Float(); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return v.String()
	}
	return v.Any()
}
