package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	State         string     `json:"state"`
	Fatal         bool       `json:"fatal"`
	Tracking      bool       `json:"tracking"`
	Position      *int       `json:"position"` // null when uncalibrated
	FullWest      int        `json:"full_west"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	Counts        CountsJSON `json:"move_counts"`
}

// CountsJSON is the JSON representation of move counts.
type CountsJSON struct {
	Completed  int `json:"completed"`
	Aborted    int `json:"aborted"`
	Faults     int `json:"faults"`
	ManualJogs int `json:"manual_jogs"`
}

func buildInner(snap Snapshot) StatusInner {
	var pos *int
	if snap.PositionKnown() {
		p := snap.Position
		pos = &p
	}

	return StatusInner{
		State:         snap.Status.String(),
		Fatal:         snap.Status.Fatal(),
		Tracking:      snap.Status == Tracking,
		Position:      pos,
		FullWest:      snap.FullWest,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Counts: CountsJSON{
			Completed:  snap.Counts.MovesCompleted,
			Aborted:    snap.Counts.MovesAborted,
			Faults:     snap.Counts.Faults,
			ManualJogs: snap.Counts.ManualJogs,
		},
	}
}

// FormatStatusEvent returns the JSON status payload for an MQTT lifecycle
// event (STARTUP, SHUTDOWN) or for the retained status topic (empty event).
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
