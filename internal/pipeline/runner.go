package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/recording"
	"recap/internal/services"
	"recap/internal/stage"
	"recap/internal/validate"
)

// Definition binds a stage handler to its status transitions.
type Definition struct {
	Name       string
	Start      recording.Status
	Processing recording.Status
	Done       recording.Status
	Handler    stage.Handler
}

// Runner drives one recording at a time through the ordered stage table,
// persisting every status transition.
type Runner struct {
	cfg    *config.Config
	store  *recording.Store
	logger *slog.Logger
	stages []Definition
}

// NewRunner wires the stage table from configuration and services.
func NewRunner(cfg *config.Config, store *recording.Store, logger *slog.Logger, deps Deps) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	validator := validate.NewValidator(cfg, deps.Media)
	stages := []Definition{
		{
			Name:       "validate",
			Start:      recording.StatusUploaded,
			Processing: recording.StatusValidating,
			Done:       recording.StatusValidated,
			Handler:    &validationHandler{validator: validator, logger: logger},
		},
		{
			Name:       "repair",
			Start:      recording.StatusValidated,
			Processing: recording.StatusRepairing,
			Done:       recording.StatusRepaired,
			Handler:    &repairHandler{cfg: cfg, media: deps.Media, logger: logger},
		},
		{
			Name:       "extract-audio",
			Start:      recording.StatusRepaired,
			Processing: recording.StatusExtractingAudio,
			Done:       recording.StatusAudioExtracted,
			Handler:    &extractHandler{cfg: cfg, media: deps.Media, logger: logger},
		},
		{
			Name:       "compress",
			Start:      recording.StatusAudioExtracted,
			Processing: recording.StatusCompressing,
			Done:       recording.StatusCompressed,
			Handler:    &compressHandler{cfg: cfg, media: deps.Media, logger: logger},
		},
		{
			Name:       "transcribe",
			Start:      recording.StatusCompressed,
			Processing: recording.StatusTranscribing,
			Done:       recording.StatusTranscribed,
			Handler:    &transcribeHandler{cfg: cfg, store: store, transcriber: deps.Transcriber, logger: logger},
		},
		{
			Name:       "summarize",
			Start:      recording.StatusTranscribed,
			Processing: recording.StatusSummarizing,
			Done:       recording.StatusCompleted,
			Handler:    &summarizeHandler{cfg: cfg, summarizer: deps.Summarizer, logger: logger},
		},
	}
	return &Runner{cfg: cfg, store: store, logger: logger, stages: stages}
}

// StartStatuses lists the statuses the dispatcher polls for.
func (r *Runner) StartStatuses() []recording.Status {
	statuses := make([]recording.Status, 0, len(r.stages))
	for _, def := range r.stages {
		statuses = append(statuses, def.Start)
	}
	return statuses
}

// Health reports the readiness of every stage.
func (r *Runner) Health(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(r.stages))
	for _, def := range r.stages {
		checks = append(checks, def.Handler.HealthCheck(ctx))
	}
	return checks
}

func (r *Runner) stageFor(status recording.Status) (Definition, bool) {
	for _, def := range r.stages {
		if def.Start == status {
			return def, true
		}
	}
	return Definition{}, false
}

// Run drives the recording until it reaches a terminal status. Every
// stage failure is terminal; there is no automatic retry.
func (r *Runner) Run(ctx context.Context, rec *recording.Recording) error {
	for !recording.IsTerminal(rec.Status) {
		def, ok := r.stageFor(rec.Status)
		if !ok {
			return fmt.Errorf("no stage configured for status %q", rec.Status)
		}
		if err := r.runStage(ctx, def, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStage(ctx context.Context, def Definition, rec *recording.Recording) error {
	stageCtx := services.WithStage(services.WithRecordingID(ctx, rec.ID), def.Name)
	if rec.CorrelationID != "" {
		stageCtx = services.WithRequestID(stageCtx, rec.CorrelationID)
	}
	stageLogger := logging.WithContext(stageCtx, r.logger)

	stageLogger.Info("stage started",
		logging.String("processing_status", string(def.Processing)),
		logging.String("source_file", strings.TrimSpace(rec.SourcePath)),
	)

	label := deriveStageLabel(def.Processing)
	rec.Status = def.Processing
	rec.ErrorMessage = ""
	rec.SetProgress(label, label+" started")
	if err := r.store.Update(stageCtx, rec); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	if err := def.Handler.Prepare(stageCtx, rec); err != nil {
		return r.handleFailure(stageCtx, stageLogger, rec, err)
	}
	if err := r.store.Update(stageCtx, rec); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := def.Handler.Execute(stageCtx, rec); err != nil {
		return r.handleFailure(stageCtx, stageLogger, rec, err)
	}

	if rec.Status == def.Processing || rec.Status == "" {
		rec.Status = def.Done
	}
	if err := r.store.Update(stageCtx, rec); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info("stage completed",
		logging.String("next_status", string(rec.Status)),
		logging.String("progress_message", strings.TrimSpace(rec.ProgressMessage)),
	)
	return nil
}

func (r *Runner) handleFailure(ctx context.Context, logger *slog.Logger, rec *recording.Recording, stageErr error) error {
	message := r.failureMessage(stageErr)
	rec.SetFailed(message)

	logger.Error("stage failed",
		logging.String("error_message", message),
		logging.Error(stageErr),
	)
	if err := r.store.Update(ctx, rec); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	return stageErr
}

// failureMessage normalizes a stage error for operators. Corruption gets
// actionable guidance instead of tool output; everything else is
// truncated to the configured cap.
func (r *Runner) failureMessage(err error) string {
	if err == nil {
		return "stage failed"
	}
	if errors.Is(err, ErrCorrupted) {
		return validate.CorruptionGuidance
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = "stage failed"
	}
	maxChars := r.cfg.Workflow.ErrorMessageMaxChars
	if maxChars > 0 {
		if runes := []rune(message); len(runes) > maxChars {
			message = string(runes[:maxChars])
		}
	}
	return message
}

func deriveStageLabel(status recording.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
