package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"recap/internal/config"
	"recap/internal/diarize"
	"recap/internal/recording"
	"recap/internal/services"
	"recap/internal/stage"
)

type transcribeHandler struct {
	cfg         *config.Config
	store       *recording.Store
	transcriber Transcriber
	logger      *slog.Logger
}

func (h *transcribeHandler) Prepare(ctx context.Context, rec *recording.Recording) error {
	if rec.AudioPath == "" {
		return services.Wrap(services.ErrTranscription, "transcribe", "prepare", "no extracted audio on record", nil)
	}
	return nil
}

func (h *transcribeHandler) Execute(ctx context.Context, rec *recording.Recording) error {
	result, err := h.transcriber.Transcribe(ctx, rec.AudioPath, h.cfg.Paths.AudioDir)
	if err != nil {
		return services.Wrap(services.ErrTranscription, "transcribe", "whisper", "", err)
	}

	labeled := diarize.Smooth(result.Segments, h.smoothingOptions())
	tracks := diarize.Aggregate(labeled)

	transcript := diarize.Transcript{
		FullText:    result.FullText,
		Language:    result.Language,
		Duration:    result.DurationSeconds,
		NumSpeakers: len(tracks),
		Segments:    labeled,
	}
	raw, err := diarize.MarshalTranscript(transcript)
	if err != nil {
		return services.Wrap(services.ErrTranscription, "transcribe", "encode transcript", "", err)
	}

	rec.TranscriptJSON = raw
	rec.Language = result.Language
	rec.SpeakerCount = len(tracks)
	if rec.DurationSeconds == 0 {
		rec.DurationSeconds = result.DurationSeconds
	}

	speakers := make([]recording.Speaker, 0, len(tracks))
	for _, track := range tracks {
		speakers = append(speakers, recording.Speaker{
			RecordingID:     rec.ID,
			Label:           track.Label,
			DisplayName:     diarize.SpeakerName(track.Label),
			SegmentCount:    track.SegmentCount,
			DurationSeconds: track.DurationSeconds,
		})
	}
	if err := h.store.ReplaceSpeakers(ctx, rec.ID, speakers); err != nil {
		return services.Wrap(services.ErrPersistence, "transcribe", "persist speakers", "", err)
	}

	rec.SetProgress("Transcribing", fmt.Sprintf("%d segments across %d speakers", len(labeled), len(tracks)))
	return nil
}

func (h *transcribeHandler) smoothingOptions() diarize.Options {
	opts := diarize.DefaultOptions()
	if h.cfg.Diarization.PauseThreshold > 0 {
		opts.PauseThreshold = h.cfg.Diarization.PauseThreshold
	}
	if h.cfg.Diarization.ShortSegmentThreshold > 0 {
		opts.ShortSegmentThreshold = h.cfg.Diarization.ShortSegmentThreshold
	}
	if h.cfg.Diarization.MergeThreshold > 0 {
		opts.MergeThreshold = h.cfg.Diarization.MergeThreshold
	}
	return opts
}

func (h *transcribeHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("transcribe")
}
