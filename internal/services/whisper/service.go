// Package whisper shells out to the whisper CLI to transcribe mono WAV
// audio into timed segments.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"recap/internal/config"
	"recap/internal/diarize"
	"recap/internal/language"
)

// Result is a completed transcription.
type Result struct {
	Language        string
	FullText        string
	DurationSeconds float64
	Segments        []diarize.Segment
}

// Service runs the whisper binary and parses its JSON output.
type Service struct {
	binary   string
	model    string
	language string
	timeout  time.Duration

	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService builds a transcription service from configuration.
func NewService(cfg *config.Config) *Service {
	return &Service{
		binary:   cfg.Whisper.Binary,
		model:    cfg.Whisper.Model,
		language: cfg.Whisper.Language,
		timeout:  time.Duration(cfg.Whisper.TimeoutSeconds) * time.Second,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.model
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Transcribe runs whisper on the audio file and loads the JSON result
// written next to it in outputDir.
func (s *Service) Transcribe(ctx context.Context, audioPath, outputDir string) (Result, error) {
	var result Result

	if audioPath == "" {
		return result, fmt.Errorf("transcribe: audio path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.run(ctx, s.binary, s.buildArgs(audioPath, outputDir)...); err != nil {
		return result, fmt.Errorf("whisper: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	return loadResult(jsonPath)
}

func (s *Service) buildArgs(audioPath, outputDir string) []string {
	args := []string{
		audioPath,
		"--model", s.model,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--task", "transcribe",
	}
	if lang := language.ToISO2(s.language); lang != "" {
		args = append(args, "--language", lang)
	}
	return args
}

// payload is the whisper JSON output structure.
type payload struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func loadResult(jsonPath string) (Result, error) {
	var result Result

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return result, fmt.Errorf("read whisper output: %w", err)
	}
	var parsed payload
	if err := json.Unmarshal(data, &parsed); err != nil {
		return result, fmt.Errorf("parse whisper json: %w", err)
	}

	result.Language = parsed.Language
	result.Segments = make([]diarize.Segment, 0, len(parsed.Segments))
	var texts []string
	for _, seg := range parsed.Segments {
		text := strings.TrimSpace(seg.Text)
		result.Segments = append(result.Segments, diarize.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
		if text != "" {
			texts = append(texts, text)
		}
		if seg.End > result.DurationSeconds {
			result.DurationSeconds = seg.End
		}
	}

	result.FullText = strings.TrimSpace(parsed.Text)
	if result.FullText == "" {
		result.FullText = strings.Join(texts, " ")
	}
	return result, nil
}
