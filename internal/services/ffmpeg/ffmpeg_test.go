package ffmpeg_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"recap/internal/services/ffmpeg"
	"recap/internal/testsupport"
)

func newService(t *testing.T) *ffmpeg.Service {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return ffmpeg.NewService(cfg)
}

func TestProbeParsesStreamsAndFormat(t *testing.T) {
	svc := newService(t)
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		payload := `{
			"streams": [
				{"index": 0, "codec_type": "video", "codec_name": "vp8", "width": 1280, "height": 720},
				{"index": 1, "codec_type": "audio", "codec_name": "opus", "channels": 1}
			],
			"format": {"format_name": "matroska,webm", "duration": "42.5", "size": "123456"}
		}`
		return []byte(payload), nil
	})

	result, err := svc.Probe(context.Background(), "/tmp/in.webm")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if got := result.VideoStreamCount(); got != 1 {
		t.Fatalf("VideoStreamCount = %d, want 1", got)
	}
	if got := result.AudioStreamCount(); got != 1 {
		t.Fatalf("AudioStreamCount = %d, want 1", got)
	}
	if got := result.DurationSeconds(); got != 42.5 {
		t.Fatalf("DurationSeconds = %v, want 42.5", got)
	}
	if !result.HasDuration() {
		t.Fatal("expected HasDuration to be true")
	}
	if got := result.SizeBytes(); got != 123456 {
		t.Fatalf("SizeBytes = %d, want 123456", got)
	}
}

func TestProbeMissingDuration(t *testing.T) {
	svc := newService(t)
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"streams": [{"index": 0, "codec_type": "video"}], "format": {"format_name": "matroska,webm"}}`), nil
	})

	result, err := svc.Probe(context.Background(), "/tmp/in.webm")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if result.HasDuration() {
		t.Fatal("expected HasDuration to be false when format omits duration")
	}
}

func TestProbeFailureCarriesToolOutput(t *testing.T) {
	svc := newService(t)
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("EBML header parsing failed\n"), errors.New("exit status 1")
	})

	_, err := svc.Probe(context.Background(), "/tmp/broken.webm")
	if err == nil {
		t.Fatal("expected Probe to fail")
	}
	var toolErr *ffmpeg.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected *ToolError, got %T: %v", err, err)
	}
	if !strings.Contains(toolErr.Output, "EBML header parsing failed") {
		t.Fatalf("ToolError output missing probe text: %q", toolErr.Output)
	}
	if toolErr.Timeout() {
		t.Fatal("plain failure should not report a timeout")
	}
}

func TestProbeRejectsMalformedJSON(t *testing.T) {
	svc := newService(t)
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("not json"), nil
	})

	if _, err := svc.Probe(context.Background(), "/tmp/in.webm"); err == nil {
		t.Fatal("expected malformed probe payload to fail")
	}
}

func TestRemuxUsesStreamCopy(t *testing.T) {
	svc := newService(t)
	var captured []string
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		captured = args
		return nil, nil
	})

	if err := svc.Remux(context.Background(), "/tmp/in.webm", "/tmp/out.mp4"); err != nil {
		t.Fatalf("Remux returned error: %v", err)
	}
	joined := strings.Join(captured, " ")
	if !strings.Contains(joined, "-c copy") {
		t.Fatalf("remux args missing stream copy: %q", joined)
	}
	if !strings.Contains(joined, "+faststart") {
		t.Fatalf("remux args missing faststart: %q", joined)
	}
	if captured[len(captured)-1] != "/tmp/out.mp4" {
		t.Fatalf("remux dest = %q, want /tmp/out.mp4", captured[len(captured)-1])
	}
}

func TestExtractAudioProducesMono16kPCM(t *testing.T) {
	svc := newService(t)
	var captured []string
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		captured = args
		return nil, nil
	})

	if err := svc.ExtractAudio(context.Background(), "/tmp/in.mp4", "/tmp/out.wav"); err != nil {
		t.Fatalf("ExtractAudio returned error: %v", err)
	}
	joined := strings.Join(captured, " ")
	for _, want := range []string{"-vn", "pcm_s16le", "-ar 16000", "-ac 1"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("extract args missing %q: %q", want, joined)
		}
	}
}

func TestCompressTranscodesToH264AAC(t *testing.T) {
	svc := newService(t)
	var captured []string
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		captured = args
		return nil, nil
	})

	if err := svc.Compress(context.Background(), "/tmp/in.webm", "/tmp/out.mp4"); err != nil {
		t.Fatalf("Compress returned error: %v", err)
	}
	joined := strings.Join(captured, " ")
	for _, want := range []string{"libx264", "-crf 23", "-c:a aac", "-b:a 128k", "+faststart"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("compress args missing %q: %q", want, joined)
		}
	}
}

func TestToolErrorTimeout(t *testing.T) {
	err := &ffmpeg.ToolError{Tool: "ffmpeg", Op: "remux", Err: context.DeadlineExceeded}
	if !err.Timeout() {
		t.Fatal("deadline exceeded should report a timeout")
	}
}
