// Package api defines the transport representations served over HTTP
// and consumed by the CLI.
package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Recording describes a recording in a transport-friendly format.
type Recording struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Status          string   `json:"status"`
	Progress        Progress `json:"progress"`
	ErrorMessage    string   `json:"errorMessage,omitempty"`
	Language        string   `json:"language,omitempty"`
	LanguageName    string   `json:"languageName,omitempty"`
	DurationSeconds float64  `json:"durationSeconds"`
	FileSizeMB      float64  `json:"fileSizeMB"`
	SpeakerCount    int      `json:"speakerCount"`
	NeedsRepair     bool     `json:"needsRepair"`
	Repaired        bool     `json:"repaired"`
	HasTranscript   bool     `json:"hasTranscript"`
	HasSummary      bool     `json:"hasSummary"`
	CorrelationID   string   `json:"correlationId,omitempty"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
}

// Progress captures stage progress information for a recording.
type Progress struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Speaker is one diarized speaker track.
type Speaker struct {
	Label           int    `json:"label"`
	DisplayName     string `json:"displayName"`
	SegmentCount    int    `json:"segmentCount"`
	DurationSeconds int64  `json:"durationSeconds"`
}

// RecordingDetail extends Recording with transcript and summary payloads.
type RecordingDetail struct {
	Recording
	Transcript     json.RawMessage `json:"transcript,omitempty"`
	TranscriptText string          `json:"transcriptText,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	Speakers       []Speaker       `json:"speakers,omitempty"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus is the /api/status payload.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Active       int                `json:"active"`
	Stats        map[string]int     `json:"stats"`
	Stages       []StageHealth      `json:"stages"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// RecordingListResponse wraps list results.
type RecordingListResponse struct {
	Recordings []Recording `json:"recordings"`
}

// RecordingResponse wraps a single recording with its artifacts.
type RecordingResponse struct {
	Recording RecordingDetail `json:"recording"`
}

// UploadResponse acknowledges an accepted upload.
type UploadResponse struct {
	Recording Recording `json:"recording"`
}

// RenameSpeakerRequest is the speaker rename body.
type RenameSpeakerRequest struct {
	DisplayName string `json:"displayName"`
}
