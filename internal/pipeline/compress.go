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

type compressHandler struct {
	cfg    *config.Config
	media  MediaService
	logger *slog.Logger
}

func (h *compressHandler) Prepare(ctx context.Context, rec *recording.Recording) error {
	if err := os.MkdirAll(h.cfg.Paths.CompressedDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "compress", "ensure compressed dir", "", err)
	}
	return nil
}

func (h *compressHandler) Execute(ctx context.Context, rec *recording.Recording) error {
	if !h.cfg.Compression.Enabled {
		rec.SetProgress("Compressing", "compression disabled")
		return nil
	}
	// A repaired recording is already a web-friendly MP4.
	if rec.RepairedPath != "" {
		rec.SetProgress("Compressing", "repaired MP4 already playable, skipping compression")
		return nil
	}

	dest := filepath.Join(h.cfg.Paths.CompressedDir, fmt.Sprintf("recording_%d.mp4", rec.ID))
	if err := h.media.Compress(ctx, rec.SourcePath, dest); err != nil {
		_ = os.Remove(dest)
		return services.Wrap(services.ErrExternalTool, "compress", "ffmpeg", "compression failed", err)
	}
	rec.CompressedPath = dest
	rec.SetProgress("Compressing", "web-friendly MP4 ready")
	return nil
}

func (h *compressHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("compress")
}
