package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"recap/internal/config"
	"recap/internal/recording"
	"recap/internal/services"
	"recap/internal/stage"
)

type extractHandler struct {
	cfg    *config.Config
	media  MediaService
	logger *slog.Logger
}

func (h *extractHandler) Prepare(ctx context.Context, rec *recording.Recording) error {
	if err := os.MkdirAll(h.cfg.Paths.AudioDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "extract-audio", "ensure audio dir", "", err)
	}
	return nil
}

func (h *extractHandler) Execute(ctx context.Context, rec *recording.Recording) error {
	input := rec.MediaInput()
	dest := filepath.Join(h.cfg.Paths.AudioDir, fmt.Sprintf("recording_%d.wav", rec.ID))
	if err := h.media.ExtractAudio(ctx, input, dest); err != nil {
		_ = os.Remove(dest)
		return services.Wrap(services.ErrExternalTool, "extract-audio", "ffmpeg", "audio extraction failed", err)
	}
	rec.AudioPath = dest
	rec.SetProgress("Extracting Audio", "mono 16kHz WAV ready for transcription")
	return nil
}

func (h *extractHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("extract-audio")
}
