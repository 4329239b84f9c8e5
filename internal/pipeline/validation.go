package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"recap/internal/recording"
	"recap/internal/services"
	"recap/internal/stage"
	"recap/internal/validate"
)

// ErrCorrupted marks failures caused by a structurally broken upload.
// The runner replaces the raw tool output with user guidance.
var ErrCorrupted = errors.New("corrupted recording")

type validationHandler struct {
	validator *validate.Validator
	logger    *slog.Logger
}

func (h *validationHandler) Prepare(ctx context.Context, rec *recording.Recording) error {
	if rec.SourcePath == "" {
		return services.Wrap(services.ErrValidation, "validate", "prepare", "recording has no source path", nil)
	}
	return nil
}

func (h *validationHandler) Execute(ctx context.Context, rec *recording.Recording) error {
	result, err := h.validator.Validate(ctx, rec.SourcePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "validate", "inspect file", "", err)
	}
	if !result.Valid {
		if result.Corrupted {
			return fmt.Errorf("%w: %w: %s", services.ErrValidation, ErrCorrupted, result.Reason)
		}
		return services.Wrap(services.ErrValidation, "validate", "check integrity", result.Reason, nil)
	}

	rec.NeedsRepair = result.NeedsRepair
	if result.Probe != nil && result.Probe.HasDuration() {
		rec.DurationSeconds = result.Probe.DurationSeconds()
	}
	if result.NeedsRepair {
		rec.SetProgress("Validating", "container playable but missing duration, repair scheduled")
	} else {
		rec.SetProgress("Validating", "container verified")
	}
	return nil
}

func (h *validationHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("validate")
}
