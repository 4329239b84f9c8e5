package pipeline

import (
	"context"
	"log/slog"

	"recap/internal/config"
	"recap/internal/diarize"
	"recap/internal/recording"
	"recap/internal/services"
	"recap/internal/stage"
)

type summarizeHandler struct {
	cfg        *config.Config
	summarizer Summarizer
	logger     *slog.Logger
}

func (h *summarizeHandler) Prepare(ctx context.Context, rec *recording.Recording) error {
	return nil
}

func (h *summarizeHandler) Execute(ctx context.Context, rec *recording.Recording) error {
	if !h.cfg.Summarizer.Enabled {
		rec.SetProgress("Summarizing", "summarization disabled")
		return nil
	}

	transcript, err := stage.ParseTranscript(rec.TranscriptJSON)
	if err != nil {
		return err
	}
	text := diarize.FormatForSummary(transcript, nil)
	if text == "" {
		return services.Wrap(services.ErrSummarization, "summarize", "prepare", "transcript has no speech to summarize", nil)
	}

	summary, err := h.summarizer.Summarize(ctx, text, transcript.NumSpeakers)
	if err != nil {
		return services.Wrap(services.ErrSummarization, "summarize", "generate", "", err)
	}
	rec.SummaryText = summary
	rec.SetProgress("Summarizing", "summary generated")
	return nil
}

func (h *summarizeHandler) HealthCheck(ctx context.Context) stage.Health {
	if !h.cfg.Summarizer.Enabled {
		return stage.Healthy("summarize")
	}
	if err := h.summarizer.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("summarize", err.Error())
	}
	return stage.Healthy("summarize")
}
