package validate_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"recap/internal/services/ffmpeg"
	"recap/internal/testsupport"
	"recap/internal/validate"
)

type fakeProber struct {
	result *ffmpeg.Result
	err    error
}

func (f *fakeProber) Probe(ctx context.Context, path string) (*ffmpeg.Result, error) {
	return f.result, f.err
}

func healthyProbe() *ffmpeg.Result {
	return &ffmpeg.Result{
		Streams: []ffmpeg.Stream{
			{Index: 0, CodecType: "video", CodecName: "vp8"},
			{Index: 1, CodecType: "audio", CodecName: "opus"},
		},
		Format: ffmpeg.Format{FormatName: "matroska,webm", Duration: "30.0"},
	}
}

func newValidator(t *testing.T, prober validate.Prober) (*validate.Validator, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return validate.NewValidator(cfg, prober), cfg.Paths.VideosDir
}

func TestValidateEmptyFile(t *testing.T) {
	validator, dir := newValidator(t, &fakeProber{result: healthyProbe()})
	path := filepath.Join(dir, "empty.webm")
	testsupport.WriteFile(t, path, 0)

	result, err := validator.Validate(context.Background(), path)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("empty file should be invalid")
	}
	if !strings.Contains(result.Reason, "empty") {
		t.Fatalf("reason = %q, want empty-file reason", result.Reason)
	}
}

func TestValidateTooSmall(t *testing.T) {
	validator, dir := newValidator(t, &fakeProber{result: healthyProbe()})
	path := filepath.Join(dir, "tiny.webm")
	testsupport.WriteFile(t, path, 100)

	result, err := validator.Validate(context.Background(), path)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("tiny file should be invalid")
	}
	if !strings.Contains(result.Reason, "too small") {
		t.Fatalf("reason = %q, want size reason", result.Reason)
	}
}

func TestValidateMissingFile(t *testing.T) {
	validator, dir := newValidator(t, &fakeProber{result: healthyProbe()})

	result, err := validator.Validate(context.Background(), filepath.Join(dir, "absent.webm"))
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("missing file should be invalid")
	}
}

func TestValidateBadWebmMagic(t *testing.T) {
	validator, dir := newValidator(t, &fakeProber{result: healthyProbe()})
	path := filepath.Join(dir, "bad.webm")
	testsupport.WriteFile(t, path, 20000)

	result, err := validator.Validate(context.Background(), path)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("file without EBML signature should be invalid")
	}
	if !strings.Contains(result.Reason, "EBML") {
		t.Fatalf("reason = %q, want EBML header reason", result.Reason)
	}
}

func TestValidateAcceptsKnownSignatures(t *testing.T) {
	cases := []struct {
		name   string
		header []byte
	}{
		{"recording.webm", []byte{0x1A, 0x45, 0xDF, 0xA3}},
		{"recording.mkv", []byte{0x1A, 0x45, 0xDF, 0xA3}},
		{"recording.mp4", []byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p'}},
		{"recording.avi", []byte("RIFF")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validator, dir := newValidator(t, &fakeProber{result: healthyProbe()})
			path := filepath.Join(dir, tc.name)
			testsupport.WriteFileWithHeader(t, path, tc.header, 20000)

			result, err := validator.Validate(context.Background(), path)
			if err != nil {
				t.Fatalf("Validate returned error: %v", err)
			}
			if !result.Valid {
				t.Fatalf("expected valid, got reason %q", result.Reason)
			}
			if result.NeedsRepair {
				t.Fatal("probe reported a duration, repair should not be flagged")
			}
		})
	}
}

func TestValidateFlagsRepairWhenDurationMissing(t *testing.T) {
	probe := healthyProbe()
	probe.Format.Duration = ""
	validator, dir := newValidator(t, &fakeProber{result: probe})
	path := filepath.Join(dir, "nodur.webm")
	testsupport.WriteFileWithHeader(t, path, []byte{0x1A, 0x45, 0xDF, 0xA3}, 20000)

	result, err := validator.Validate(context.Background(), path)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, got reason %q", result.Reason)
	}
	if !result.NeedsRepair {
		t.Fatal("missing container duration should flag repair")
	}
}

func TestValidateNoStreams(t *testing.T) {
	validator, dir := newValidator(t, &fakeProber{result: &ffmpeg.Result{Format: ffmpeg.Format{Duration: "5.0"}}})
	path := filepath.Join(dir, "hollow.webm")
	testsupport.WriteFileWithHeader(t, path, []byte{0x1A, 0x45, 0xDF, 0xA3}, 20000)

	result, err := validator.Validate(context.Background(), path)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("file with no streams should be invalid")
	}
	if !strings.Contains(result.Reason, "streams") {
		t.Fatalf("reason = %q, want stream reason", result.Reason)
	}
}

func TestValidateClassifiesCorruption(t *testing.T) {
	probeErr := &ffmpeg.ToolError{
		Tool:   "ffprobe",
		Op:     "probe",
		Output: "[matroska,webm] EBML header parsing failed",
		Err:    errors.New("exit status 1"),
	}
	validator, dir := newValidator(t, &fakeProber{err: probeErr})
	path := filepath.Join(dir, "corrupt.webm")
	testsupport.WriteFileWithHeader(t, path, []byte{0x1A, 0x45, 0xDF, 0xA3}, 20000)

	result, err := validator.Validate(context.Background(), path)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("corrupted file should be invalid")
	}
	if !result.Corrupted {
		t.Fatal("EBML parse failure should mark the file corrupted")
	}
}

func TestValidateTruncatesOtherProbeFailures(t *testing.T) {
	probeErr := &ffmpeg.ToolError{
		Tool:   "ffprobe",
		Op:     "probe",
		Output: strings.Repeat("x", 500),
		Err:    errors.New("exit status 1"),
	}
	validator, dir := newValidator(t, &fakeProber{err: probeErr})
	path := filepath.Join(dir, "odd.webm")
	testsupport.WriteFileWithHeader(t, path, []byte{0x1A, 0x45, 0xDF, 0xA3}, 20000)

	result, err := validator.Validate(context.Background(), path)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("probe failure should be invalid")
	}
	if result.Corrupted {
		t.Fatal("generic probe failure should not be marked corrupted")
	}
	if len(result.Reason) > 250 {
		t.Fatalf("reason length = %d, want truncated output", len(result.Reason))
	}
}

func TestValidateTruncatesProbeOutputOnRuneBoundary(t *testing.T) {
	probeErr := &ffmpeg.ToolError{
		Tool:   "ffprobe",
		Op:     "probe",
		Output: strings.Repeat("ü", 300),
		Err:    errors.New("exit status 1"),
	}
	validator, dir := newValidator(t, &fakeProber{err: probeErr})
	path := filepath.Join(dir, "umlaut.webm")
	testsupport.WriteFileWithHeader(t, path, []byte{0x1A, 0x45, 0xDF, 0xA3}, 20000)

	result, err := validator.Validate(context.Background(), path)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("probe failure should be invalid")
	}
	if !utf8.ValidString(result.Reason) {
		t.Fatalf("reason is not valid UTF-8: %q", result.Reason)
	}
	if got := utf8.RuneCountInString(result.Reason); got > 250 {
		t.Fatalf("reason rune count = %d, want truncated output", got)
	}
}
