// Package validate performs integrity checks on uploaded recordings
// before the pipeline accepts them: size floors, container magic bytes,
// and an ffprobe structural pass.
package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"recap/internal/config"
	"recap/internal/services/ffmpeg"
)

// corruptionMarkers are ffprobe output fragments that identify a broken
// container rather than a transient tool failure.
var corruptionMarkers = []string{
	"EBML header parsing failed",
	"Invalid data found",
	"moov atom not found",
}

// CorruptionGuidance is shown to users when a recording's container is
// structurally broken. These uploads usually come from a recorder that
// stopped too early or never finalized the file.
const CorruptionGuidance = "recording is corrupted and cannot be processed; " +
	"record for at least 10 seconds and wait a moment before stopping"

// probeErrorMaxChars caps probe output carried into a validation reason.
const probeErrorMaxChars = 200

// magic signatures by extension. MP4 carries "ftyp" at offset 4.
var (
	ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}
	riffMagic = []byte("RIFF")
	ftypMagic = []byte("ftyp")
)

// Result reports the outcome of validating one recording.
type Result struct {
	Valid bool
	// Reason explains why validation failed. Empty when Valid.
	Reason string
	// Corrupted marks structural corruption; callers surface
	// CorruptionGuidance instead of tool output.
	Corrupted bool
	// NeedsRepair is set when the file is playable but the container
	// lacks duration metadata and should be remuxed.
	NeedsRepair bool
	// Probe holds the parsed ffprobe payload when the probe ran.
	Probe *ffmpeg.Result
}

func invalid(reason string) Result {
	return Result{Reason: reason}
}

func corrupted(reason string) Result {
	return Result{Reason: reason, Corrupted: true}
}

// Prober inspects a media container. *ffmpeg.Service satisfies it.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.Result, error)
}

// Validator checks uploaded recordings against size and structure rules.
type Validator struct {
	minBytes int64
	prober   Prober
}

// NewValidator builds a validator from configuration.
func NewValidator(cfg *config.Config, prober Prober) *Validator {
	return &Validator{
		minBytes: int64(cfg.Validation.MinBytes),
		prober:   prober,
	}
}

// Validate runs the full check sequence on one file. It returns an
// error only for unexpected I/O failures; rule violations come back as
// an invalid Result.
func (v *Validator) Validate(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return invalid("file does not exist"), nil
		}
		return Result{}, fmt.Errorf("stat recording: %w", err)
	}

	if info.Size() == 0 {
		return invalid("file is empty (0 bytes)"), nil
	}
	if info.Size() < v.minBytes {
		return invalid(fmt.Sprintf("file too small (%d bytes), likely an aborted recording", info.Size())), nil
	}

	if result, ok, err := checkMagic(path); err != nil {
		return Result{}, err
	} else if !ok {
		return result, nil
	}

	probe, err := v.prober.Probe(ctx, path)
	if err != nil {
		return classifyProbeFailure(err), nil
	}

	if probe.VideoStreamCount() == 0 && probe.AudioStreamCount() == 0 {
		return invalid("no video or audio streams found"), nil
	}

	return Result{
		Valid:       true,
		NeedsRepair: !probe.HasDuration(),
		Probe:       probe,
	}, nil
}

// checkMagic verifies the container signature for known extensions.
// Unknown extensions pass through to the structural probe.
func checkMagic(path string) (Result, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, false, fmt.Errorf("open recording: %w", err)
	}
	defer file.Close()

	header := make([]byte, 8)
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Result{}, false, fmt.Errorf("read header: %w", err)
	}
	header = header[:n]

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".webm", ".mkv":
		if !bytes.HasPrefix(header, ebmlMagic) {
			return invalid(fmt.Sprintf("invalid %s header, expected EBML signature", strings.TrimPrefix(ext, "."))), false, nil
		}
	case ".mp4":
		if len(header) < 8 || !bytes.Equal(header[4:8], ftypMagic) {
			return invalid("invalid mp4 header, expected ftyp box"), false, nil
		}
	case ".avi":
		if !bytes.HasPrefix(header, riffMagic) {
			return invalid("invalid avi header, expected RIFF signature"), false, nil
		}
	}
	return Result{}, true, nil
}

func classifyProbeFailure(err error) Result {
	var toolErr *ffmpeg.ToolError
	output := err.Error()
	if errors.As(err, &toolErr) {
		if toolErr.Timeout() {
			return corrupted("probe timed out, file may be corrupted")
		}
		if toolErr.Output != "" {
			output = toolErr.Output
		}
	}
	for _, marker := range corruptionMarkers {
		if strings.Contains(output, marker) {
			return corrupted(marker)
		}
	}
	if runes := []rune(output); len(runes) > probeErrorMaxChars {
		output = string(runes[:probeErrorMaxChars])
	}
	return invalid("structural validation failed: " + output)
}
