package jobstore

import (
	"encoding/json"
	"time"

	"github.com/terradash/terradash/pkg/tfexec"
)

// Status is the lifecycle state of a provisioning job.
//
// NOTE: These values are persisted and are part of the stable on-disk
// contract.
type Status string

const (
	StatusPending       Status = "Pending"
	StatusQueued        Status = "Queued"
	StatusRunning       Status = "Running"
	StatusSuccess       Status = "Success"
	StatusFailed        Status = "Failed"
	StatusDestroyed     Status = "Destroyed"
	StatusDestroyFailed Status = "DestroyFailed"
)

// Terminal reports whether a status ends a run. finished_at is stamped at
// every transition into a terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusDestroyed, StatusDestroyFailed:
		return true
	default:
		return false
	}
}

// CanTransition enforces the forward-only state machine edges.
//
// Destroy attempts start from Success or DestroyFailed (retry after a
// failed destroy is allowed); nothing else may leave a terminal state.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusQueued
	case StatusQueued:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusSuccess || to == StatusFailed
	case StatusSuccess, StatusDestroyFailed:
		return to == StatusDestroyed || to == StatusDestroyFailed
	default:
		return false
	}
}

// Mode distinguishes template-backed jobs from archive-backed ones.
const (
	ModeTemplate = "template"
	ModeCustom   = "custom"
)

// Job is the persistent record for one provisioning request.
type Job struct {
	ID           string     `json:"job_id"`
	UserID       string     `json:"user_id"`
	Mode         string     `json:"mode"`
	TemplateName string     `json:"template_name,omitempty"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`

	// LogFilePath points at the most recent run's log (destroy replaces
	// apply here; the apply log stays on disk and stays addressable).
	LogFilePath string `json:"log_file_path,omitempty"`

	// OutputsJSON holds the full outputs mapping as captured after a
	// successful apply. Never cleared by a later destroy.
	OutputsJSON   string `json:"-"`
	PrimaryOutput string `json:"primary_output,omitempty"`
}

// SetOutputs serializes a non-empty outputs mapping onto the record.
func (j *Job) SetOutputs(outputs tfexec.Outputs) error {
	if len(outputs) == 0 {
		return nil
	}
	b, err := json.Marshal(outputs)
	if err != nil {
		return err
	}
	j.OutputsJSON = string(b)
	return nil
}

// Outputs decodes the captured outputs mapping. A record with no captured
// outputs (or an undecodable column) yields an empty mapping.
func (j *Job) Outputs() tfexec.Outputs {
	if j.OutputsJSON == "" {
		return tfexec.Outputs{}
	}
	var outputs tfexec.Outputs
	if err := json.Unmarshal([]byte(j.OutputsJSON), &outputs); err != nil {
		return tfexec.Outputs{}
	}
	return outputs
}
