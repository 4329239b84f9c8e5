// Package pipeline drives a recording through validation, repair, audio
// extraction, compression, transcription, and summarization.
package pipeline

import (
	"context"

	"recap/internal/services/ffmpeg"
	"recap/internal/services/whisper"
)

// MediaService covers the ffmpeg operations the stages invoke.
type MediaService interface {
	Probe(ctx context.Context, path string) (*ffmpeg.Result, error)
	Remux(ctx context.Context, source, dest string) error
	Reencode(ctx context.Context, source, dest string) error
	ExtractAudio(ctx context.Context, source, dest string) error
	Compress(ctx context.Context, source, dest string) error
}

// Transcriber produces timed segments from extracted audio.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, outputDir string) (whisper.Result, error)
}

// Summarizer turns a speaker-attributed transcript into prose.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, numSpeakers int) (string, error)
	HealthCheck(ctx context.Context) error
}

// Deps bundles the external services the stage handlers depend on.
type Deps struct {
	Media       MediaService
	Transcriber Transcriber
	Summarizer  Summarizer
}
