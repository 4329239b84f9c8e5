package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"recap/internal/daemon"
	"recap/internal/deps"
	"recap/internal/logging"
	"recap/internal/pipeline"
	"recap/internal/recording"
	"recap/internal/services/ffmpeg"
	"recap/internal/services/summarizer"
	"recap/internal/services/whisper"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the processing daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(ctx, cmd)
		},
	}
}

func runDaemonProcess(ctx *commandContext, cmd *cobra.Command) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		FilePath:  filepath.Join(cfg.Paths.LogDir, "recapd.log"),
		FileMaxMB: cfg.Logging.FileMaxMB,
		FileKeep:  cfg.Logging.FileKeep,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		logger.Warn("required external tools missing; processing will fail until installed",
			logging.String("missing", strings.Join(missing, ", ")))
	}

	store, err := recording.Open(cfg)
	if err != nil {
		logger.Error("open recording store", logging.Error(err))
		return err
	}
	defer store.Close()

	runner := pipeline.NewRunner(cfg, store, logger, pipeline.Deps{
		Media:       ffmpeg.NewService(cfg),
		Transcriber: whisper.NewService(cfg),
		Summarizer:  summarizer.NewClient(cfg),
	})

	d, err := daemon.New(cfg, store, logger, runner)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recap daemon listening on %s\n", d.APIAddr())

	<-signalCtx.Done()
	logger.Info("recap daemon shutting down")
	return nil
}
