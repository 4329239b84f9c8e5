package api

import (
	"encoding/json"
	"strings"

	"recap/internal/language"
	"recap/internal/recording"
)

// FromRecording converts a stored recording to its API representation.
func FromRecording(rec *recording.Recording) Recording {
	if rec == nil {
		return Recording{}
	}
	dto := Recording{
		ID:     rec.ID,
		Title:  rec.Title,
		Status: string(rec.Status),
		Progress: Progress{
			Stage:   rec.ProgressStage,
			Message: rec.ProgressMessage,
		},
		ErrorMessage:    rec.ErrorMessage,
		Language:        rec.Language,
		DurationSeconds: rec.DurationSeconds,
		FileSizeMB:      rec.FileSizeMB,
		SpeakerCount:    rec.SpeakerCount,
		NeedsRepair:     rec.NeedsRepair,
		Repaired:        rec.RepairedPath != "",
		HasTranscript:   strings.TrimSpace(rec.TranscriptJSON) != "",
		HasSummary:      strings.TrimSpace(rec.SummaryText) != "",
		CorrelationID:   rec.CorrelationID,
	}
	if rec.Language != "" {
		dto.LanguageName = language.DisplayName(rec.Language)
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !rec.UpdatedAt.IsZero() {
		dto.UpdatedAt = rec.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromRecordings converts a list of stored recordings.
func FromRecordings(recs []*recording.Recording) []Recording {
	if len(recs) == 0 {
		return nil
	}
	out := make([]Recording, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecording(rec))
	}
	return out
}

// FromSpeaker converts a speaker row.
func FromSpeaker(sp recording.Speaker) Speaker {
	return Speaker{
		Label:           sp.Label,
		DisplayName:     sp.DisplayName,
		SegmentCount:    sp.SegmentCount,
		DurationSeconds: sp.DurationSeconds,
	}
}

// FromSpeakers converts speaker rows in store order.
func FromSpeakers(speakers []recording.Speaker) []Speaker {
	if len(speakers) == 0 {
		return nil
	}
	out := make([]Speaker, 0, len(speakers))
	for _, sp := range speakers {
		out = append(out, FromSpeaker(sp))
	}
	return out
}

// MergeStats converts status-keyed counts to string keys for JSON.
func MergeStats(stats map[recording.Status]int) map[string]int {
	if stats == nil {
		return nil
	}
	merged := make(map[string]int, len(stats))
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

// TranscriptPayload returns the raw transcript JSON when present.
func TranscriptPayload(rec *recording.Recording) json.RawMessage {
	if rec == nil || strings.TrimSpace(rec.TranscriptJSON) == "" {
		return nil
	}
	return json.RawMessage(rec.TranscriptJSON)
}
