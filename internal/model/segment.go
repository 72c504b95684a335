package model

import (
	"time"

	"github.com/paulmach/orb"
)

// Segment is one road segment of the regional network.
type Segment struct {
	ID        string         `json:"id"`
	Authority string         `json:"authority"`
	Route     string         `json:"route"`
	Subgroup  string         `json:"subgroup"`
	LengthM   float64        `json:"length_m"`
	Geometry  orb.LineString `json:"-"`
}

// SurveyRecord is a single KPI observation for a segment in a survey year.
type SurveyRecord struct {
	SegmentID  string    `json:"segment_id"`
	Year       int       `json:"year"`
	KPI        string    `json:"kpi"`
	Value      float64   `json:"value"`
	Source     string    `json:"source,omitempty"`
	RecordedAt time.Time `json:"recorded_at,omitempty"`
}

// ConditionUpdateType tags live condition frames so websocket clients
// can tell them apart from heartbeat summaries.
const ConditionUpdateType = "condition"

// ConditionUpdate is the message pushed to websocket subscribers when a
// live observation changes a segment's condition. Type is always
// ConditionUpdateType.
type ConditionUpdate struct {
	Type      string         `json:"type"`
	SegmentID string         `json:"segment_id"`
	Authority string         `json:"authority,omitempty"`
	KPI       string         `json:"kpi"`
	Year      int            `json:"year"`
	Value     float64        `json:"value"`
	Class     ConditionClass `json:"class"`
	Label     string         `json:"label"`
	Color     string         `json:"color"`
}
