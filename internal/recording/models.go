package recording

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a recording.
type Status string

const (
	StatusUploaded        Status = "uploaded"
	StatusValidating      Status = "validating"
	StatusValidated       Status = "validated"
	StatusRepairing       Status = "repairing"
	StatusRepaired        Status = "repaired"
	StatusExtractingAudio Status = "extracting_audio"
	StatusAudioExtracted  Status = "audio_extracted"
	StatusCompressing     Status = "compressing"
	StatusCompressed      Status = "compressed"
	StatusTranscribing    Status = "transcribing"
	StatusTranscribed     Status = "transcribed"
	StatusSummarizing     Status = "summarizing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// DaemonStopReason is the error message set when recordings are failed
// because the daemon stopped mid-flight.
const DaemonStopReason = "processing interrupted by daemon shutdown"

var allStatuses = []Status{
	StatusUploaded,
	StatusValidating,
	StatusValidated,
	StatusRepairing,
	StatusRepaired,
	StatusExtractingAudio,
	StatusAudioExtracted,
	StatusCompressing,
	StatusCompressed,
	StatusTranscribing,
	StatusTranscribed,
	StatusSummarizing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusValidating:      {},
	StatusRepairing:       {},
	StatusExtractingAudio: {},
	StatusCompressing:     {},
	StatusTranscribing:    {},
	StatusSummarizing:     {},
}

// HealthSummary describes aggregated recording counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// DatabaseHealth captures diagnostic information about the recordings database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalRecordings  int
	Error            string
}

// Recording represents an uploaded recording persisted in SQLite.
type Recording struct {
	ID              int64
	Title           string
	Status          Status
	SourcePath      string
	RepairedPath    string
	AudioPath       string
	CompressedPath  string
	TranscriptJSON  string
	SummaryText     string
	Language        string
	DurationSeconds float64
	FileSizeMB      float64
	SpeakerCount    int
	NeedsRepair     bool
	ErrorMessage    string
	ProgressStage   string
	ProgressMessage string
	CorrelationID   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Speaker is one diarized speaker track of a recording.
type Speaker struct {
	ID              int64
	RecordingID     int64
	Label           int
	DisplayName     string
	SegmentCount    int
	DurationSeconds int64
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (r Recording) IsProcessing() bool {
	return IsProcessingStatus(r.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the pipeline.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// MediaInput returns the container the pipeline should read from. The
// repaired artifact supersedes the original upload once it exists.
func (r Recording) MediaInput() string {
	if r.RepairedPath != "" {
		return r.RepairedPath
	}
	return r.SourcePath
}

// PlaybackPath returns the preferred artifact for serving to clients.
func (r Recording) PlaybackPath() string {
	if r.CompressedPath != "" {
		return r.CompressedPath
	}
	return r.MediaInput()
}

// ArtifactPaths returns every file the recording owns on disk.
func (r Recording) ArtifactPaths() []string {
	paths := make([]string, 0, 4)
	for _, p := range []string{r.SourcePath, r.RepairedPath, r.AudioPath, r.CompressedPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// SetProgress updates the presentation fields describing in-flight work.
func (r *Recording) SetProgress(stage, message string) {
	r.ProgressStage = stage
	r.ProgressMessage = message
}

// SetFailed marks the recording as failed with the given error message.
func (r *Recording) SetFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.ProgressStage = "failed"
	r.ProgressMessage = message
}
