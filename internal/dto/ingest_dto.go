package dto

import "time"

type IngestRequest struct {
	LoadExisting bool `json:"load_existing"`
}

type IngestJobMessage struct {
	JobId string `json:"job_id"`
}

type IngestJobResponse struct {
	JobId      string     `json:"job_id"`
	Status     string     `json:"status"` // queued | running | succeeded | failed
	DataPath   string     `json:"data_path"`
	Documents  int        `json:"documents"`
	Accepted   int        `json:"accepted,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type IngestSyncResponse struct {
	DataPath       string `json:"data_path"`
	Documents      int    `json:"documents"`
	DurationMs     int64  `json:"duration_ms"`
	LoadedExisting bool   `json:"loaded_existing"`
}
