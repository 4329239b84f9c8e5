package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/recording"
	"recap/internal/services"
	"recap/internal/stage"
)

type repairHandler struct {
	cfg    *config.Config
	media  MediaService
	logger *slog.Logger
}

func (h *repairHandler) Prepare(ctx context.Context, rec *recording.Recording) error {
	if err := os.MkdirAll(h.cfg.Paths.VideosDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "repair", "ensure videos dir", "", err)
	}
	return nil
}

// Execute remuxes the upload into a fresh MP4. A failed remux falls back
// to one re-encode; this is the pipeline's only retry.
func (h *repairHandler) Execute(ctx context.Context, rec *recording.Recording) error {
	if !rec.NeedsRepair {
		rec.SetProgress("Repairing", "repair not needed")
		return nil
	}

	dest := h.repairedPath(rec)
	if err := h.media.Remux(ctx, rec.SourcePath, dest); err != nil {
		logging.WithContext(ctx, h.logger).Warn("remux failed, falling back to re-encode",
			logging.Error(err))
		_ = os.Remove(dest)
		if err := h.media.Reencode(ctx, rec.SourcePath, dest); err != nil {
			_ = os.Remove(dest)
			return services.Wrap(services.ErrExternalTool, "repair", "re-encode", "container repair failed", err)
		}
	}

	rec.RepairedPath = dest
	if probe, err := h.media.Probe(ctx, dest); err == nil && probe.HasDuration() {
		rec.DurationSeconds = probe.DurationSeconds()
	}
	rec.SetProgress("Repairing", "container rebuilt as MP4")
	return nil
}

func (h *repairHandler) repairedPath(rec *recording.Recording) string {
	base := strings.TrimSuffix(filepath.Base(rec.SourcePath), filepath.Ext(rec.SourcePath))
	return filepath.Join(h.cfg.Paths.VideosDir, fmt.Sprintf("%s_repaired.mp4", base))
}

func (h *repairHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("repair")
}
