package api

import (
	"context"

	"recap/internal/diarize"
	"recap/internal/recording"
)

// RecordingReader abstracts the persistence interactions API queries need.
type RecordingReader interface {
	List(ctx context.Context, opts recording.ListOptions) ([]*recording.Recording, error)
	GetByID(ctx context.Context, id int64) (*recording.Recording, error)
	SpeakersFor(ctx context.Context, recordingID int64) ([]recording.Speaker, error)
	Stats(ctx context.Context) (map[recording.Status]int, error)
}

// RecordingService exposes read-only recording queries returning API DTOs.
type RecordingService struct {
	store RecordingReader
}

// NewRecordingService constructs a RecordingService around the provided reader.
func NewRecordingService(store RecordingReader) *RecordingService {
	if store == nil {
		return nil
	}
	return &RecordingService{store: store}
}

// List returns recordings filtered and paged by the options.
func (s *RecordingService) List(ctx context.Context, opts recording.ListOptions) ([]Recording, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	recs, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return FromRecordings(recs), nil
}

// Stats returns recording counts keyed by status string.
func (s *RecordingService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeStats(stats), nil
}

// Describe fetches a single recording with transcript, summary, and
// speaker tracks. The transcript text view uses renamed speakers.
func (s *RecordingService) Describe(ctx context.Context, id int64) (*RecordingDetail, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	rec, err := s.store.GetByID(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}

	detail := RecordingDetail{
		Recording:  FromRecording(rec),
		Transcript: TranscriptPayload(rec),
		Summary:    rec.SummaryText,
	}

	speakers, err := s.store.SpeakersFor(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	detail.Speakers = FromSpeakers(speakers)

	if detail.Transcript != nil {
		transcript, err := diarize.UnmarshalTranscript(rec.TranscriptJSON)
		if err == nil {
			names := make(map[int]string, len(speakers))
			for _, sp := range speakers {
				if sp.DisplayName != "" {
					names[sp.Label] = sp.DisplayName
				}
			}
			detail.TranscriptText = diarize.FormatTranscript(transcript, names)
		}
	}
	return &detail, nil
}
