// Package ffmpeg wraps the ffmpeg and ffprobe binaries for container
// inspection, repair, audio extraction, and compression.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"recap/internal/config"
)

// maxOutputExcerpt bounds how much tool output a ToolError carries.
const maxOutputExcerpt = 2048

// ToolError reports a failed ffmpeg/ffprobe invocation together with a
// bounded excerpt of the tool's combined output.
type ToolError struct {
	Tool   string
	Op     string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s %s: %v", e.Tool, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %s", e.Tool, e.Op, e.Err, e.Output)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Timeout reports whether the invocation was cut off by its deadline.
func (e *ToolError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Stream describes a single media stream reported by ffprobe.
type Stream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Channels  int    `json:"channels"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format describes container-level metadata reported by ffprobe.
type Format struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// Result is the parsed ffprobe payload for one media file.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// VideoStreamCount returns the number of video streams.
func (r *Result) VideoStreamCount() int {
	return r.countStreams("video")
}

// AudioStreamCount returns the number of audio streams.
func (r *Result) AudioStreamCount() int {
	return r.countStreams("audio")
}

func (r *Result) countStreams(kind string) int {
	if r == nil {
		return 0
	}
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration, or 0 when ffprobe did
// not report one. MediaRecorder webm uploads routinely omit it.
func (r *Result) DurationSeconds() float64 {
	if r == nil {
		return 0
	}
	return parseFloat(r.Format.Duration)
}

// HasDuration reports whether the container carries a positive duration.
func (r *Result) HasDuration() bool {
	return r.DurationSeconds() > 0
}

// SizeBytes returns the container size in bytes when reported.
func (r *Result) SizeBytes() int64 {
	if r == nil {
		return 0
	}
	size, err := strconv.ParseInt(strings.TrimSpace(r.Format.Size), 10, 64)
	if err != nil {
		return 0
	}
	return size
}

func parseFloat(value string) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// Service runs ffmpeg and ffprobe with per-operation timeouts.
type Service struct {
	ffmpegBin  string
	ffprobeBin string

	probeTimeout    time.Duration
	remuxTimeout    time.Duration
	reencodeTimeout time.Duration
	extractTimeout  time.Duration
	compressTimeout time.Duration

	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService builds a media tool service from configuration.
func NewService(cfg *config.Config) *Service {
	return &Service{
		ffmpegBin:       cfg.FFmpeg.FFmpegBinary,
		ffprobeBin:      cfg.FFmpeg.FFprobeBinary,
		probeTimeout:    time.Duration(cfg.Validation.ProbeTimeoutSeconds) * time.Second,
		remuxTimeout:    time.Duration(cfg.FFmpeg.RemuxTimeoutSeconds) * time.Second,
		reencodeTimeout: time.Duration(cfg.FFmpeg.ReencodeTimeoutSeconds) * time.Second,
		extractTimeout:  time.Duration(cfg.FFmpeg.ExtractTimeoutSeconds) * time.Second,
		compressTimeout: time.Duration(cfg.FFmpeg.CompressTimeoutSeconds) * time.Second,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

func (s *Service) run(ctx context.Context, timeout time.Duration, op, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var output []byte
	var err error
	if s.commandRunner != nil {
		output, err = s.commandRunner(ctx, name, args...)
	} else {
		cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
		output, err = cmd.CombinedOutput()
	}
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			err = context.DeadlineExceeded
		}
		return output, &ToolError{Tool: name, Op: op, Output: excerpt(output), Err: err}
	}
	return output, nil
}

func excerpt(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > maxOutputExcerpt {
		text = text[:maxOutputExcerpt]
	}
	return text
}

// Probe inspects a media file with ffprobe and parses the JSON payload.
// On failure the returned ToolError carries the tool output so callers
// can classify corruption signatures.
func (s *Service) Probe(ctx context.Context, path string) (*Result, error) {
	args := []string{
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	}
	output, err := s.run(ctx, s.probeTimeout, "probe", s.ffprobeBin, args...)
	if err != nil {
		return nil, err
	}
	var result Result
	if parseErr := json.Unmarshal(output, &result); parseErr != nil {
		return nil, &ToolError{Tool: s.ffprobeBin, Op: "probe", Output: excerpt(output), Err: fmt.Errorf("parse ffprobe json: %w", parseErr)}
	}
	return &result, nil
}

// Remux copies the source streams into a fresh MP4 container without
// re-encoding. This is the cheap repair path for containers that play
// but lack duration metadata.
func (s *Service) Remux(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-c", "copy",
		"-movflags", "+faststart",
		dest,
	}
	_, err := s.run(ctx, s.remuxTimeout, "remux", s.ffmpegBin, args...)
	return err
}

// Reencode rebuilds the source as H.264/AAC MP4. Used as the fallback
// when a stream-copy remux fails.
func (s *Service) Reencode(ctx context.Context, source, dest string) error {
	_, err := s.run(ctx, s.reencodeTimeout, "reencode", s.ffmpegBin, transcodeArgs(source, dest)...)
	return err
}

// ExtractAudio produces a mono 16kHz PCM WAV suitable for speech
// recognition.
func (s *Service) ExtractAudio(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		dest,
	}
	_, err := s.run(ctx, s.extractTimeout, "extract audio", s.ffmpegBin, args...)
	return err
}

// Compress transcodes the source to a web-friendly H.264/AAC MP4.
func (s *Service) Compress(ctx context.Context, source, dest string) error {
	_, err := s.run(ctx, s.compressTimeout, "compress", s.ffmpegBin, transcodeArgs(source, dest)...)
	return err
}

func transcodeArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		dest,
	}
}
