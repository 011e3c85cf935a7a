package worker

import (
	"encoding/json"
)

// Task type constants
const (
	TypeSchedulerRun = "scheduler:run"
)

// SchedulerRunPayload identifies which organization database to schedule.
type SchedulerRunPayload struct {
	DBPath string `json:"dbPath"`
	// Today optionally pins the run's business date (YYYY-MM-DD), used for
	// backfills and reproduction of past runs.
	Today string `json:"today,omitempty"`
}

// Marshal serializes the payload to JSON.
func (p *SchedulerRunPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalSchedulerRunPayload deserializes JSON to SchedulerRunPayload.
func UnmarshalSchedulerRunPayload(data []byte) (*SchedulerRunPayload, error) {
	var p SchedulerRunPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
