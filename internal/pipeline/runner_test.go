package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"recap/internal/config"
	"recap/internal/diarize"
	"recap/internal/pipeline"
	"recap/internal/recording"
	"recap/internal/services/ffmpeg"
	"recap/internal/services/whisper"
	"recap/internal/testsupport"
	"recap/internal/validate"
)

var ebmlHeader = []byte{0x1A, 0x45, 0xDF, 0xA3}

type fakeMedia struct {
	probeResult *ffmpeg.Result
	probeErr    error
	remuxErr    error
	reencodeErr error
	extractErr  error
	compressErr error
	calls       []string
}

func (f *fakeMedia) Probe(ctx context.Context, path string) (*ffmpeg.Result, error) {
	f.calls = append(f.calls, "probe")
	return f.probeResult, f.probeErr
}

func (f *fakeMedia) Remux(ctx context.Context, source, dest string) error {
	f.calls = append(f.calls, "remux")
	return f.remuxErr
}

func (f *fakeMedia) Reencode(ctx context.Context, source, dest string) error {
	f.calls = append(f.calls, "reencode")
	return f.reencodeErr
}

func (f *fakeMedia) ExtractAudio(ctx context.Context, source, dest string) error {
	f.calls = append(f.calls, "extract")
	return f.extractErr
}

func (f *fakeMedia) Compress(ctx context.Context, source, dest string) error {
	f.calls = append(f.calls, "compress")
	return f.compressErr
}

func (f *fakeMedia) called(name string) bool {
	for _, call := range f.calls {
		if call == name {
			return true
		}
	}
	return false
}

type fakeTranscriber struct {
	result whisper.Result
	err    error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, outputDir string) (whisper.Result, error) {
	return f.result, f.err
}

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string, numSpeakers int) (string, error) {
	f.calls++
	return f.summary, f.err
}

func (f *fakeSummarizer) HealthCheck(ctx context.Context) error { return nil }

func healthyProbe() *ffmpeg.Result {
	return &ffmpeg.Result{
		Streams: []ffmpeg.Stream{
			{CodecType: "video", CodecName: "vp8"},
			{CodecType: "audio", CodecName: "opus"},
		},
		Format: ffmpeg.Format{FormatName: "matroska,webm", Duration: "30.5"},
	}
}

func defaultTranscriber() *fakeTranscriber {
	return &fakeTranscriber{result: whisper.Result{
		Language:        "en",
		FullText:        "hello world how are you",
		DurationSeconds: 9.0,
		Segments: []diarize.Segment{
			{Start: 0, End: 3, Text: "hello world"},
			{Start: 6, End: 9, Text: "how are you"},
		},
	}}
}

type fixture struct {
	cfg    *config.Config
	store  *recording.Store
	media  *fakeMedia
	trans  *fakeTranscriber
	summ   *fakeSummarizer
	runner *pipeline.Runner
	rec    *recording.Recording
}

func newFixture(t *testing.T, media *fakeMedia) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	sourcePath := filepath.Join(cfg.Paths.VideosDir, "meeting.webm")
	testsupport.WriteFileWithHeader(t, sourcePath, ebmlHeader, 20000)

	trans := defaultTranscriber()
	summ := &fakeSummarizer{summary: "a fine meeting"}
	runner := pipeline.NewRunner(cfg, store, nil, pipeline.Deps{
		Media:       media,
		Transcriber: trans,
		Summarizer:  summ,
	})
	rec := testsupport.NewRecording(t, store, "meeting", sourcePath)
	return &fixture{cfg: cfg, store: store, media: media, trans: trans, summ: summ, runner: runner, rec: rec}
}

func (f *fixture) reload(t *testing.T) *recording.Recording {
	t.Helper()
	rec, err := f.store.GetByID(context.Background(), f.rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec == nil {
		t.Fatalf("recording %d vanished", f.rec.ID)
	}
	return rec
}

func TestRunnerHappyPath(t *testing.T) {
	f := newFixture(t, &fakeMedia{probeResult: healthyProbe()})

	if err := f.runner.Run(context.Background(), f.rec); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rec := f.reload(t)
	if rec.Status != recording.StatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if rec.RepairedPath != "" {
		t.Fatal("healthy container should not be repaired")
	}
	if rec.AudioPath == "" {
		t.Fatal("audio path not persisted")
	}
	if rec.CompressedPath == "" {
		t.Fatal("compressed path not persisted")
	}
	if rec.Language != "en" {
		t.Fatalf("language = %q, want en", rec.Language)
	}
	if rec.SummaryText != "a fine meeting" {
		t.Fatalf("summary = %q", rec.SummaryText)
	}
	if rec.DurationSeconds != 30.5 {
		t.Fatalf("duration = %v, want probe duration 30.5", rec.DurationSeconds)
	}
	if rec.SpeakerCount == 0 {
		t.Fatal("speaker count not persisted")
	}

	speakers, err := f.store.SpeakersFor(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("SpeakersFor: %v", err)
	}
	if len(speakers) != rec.SpeakerCount {
		t.Fatalf("speaker rows = %d, want %d", len(speakers), rec.SpeakerCount)
	}
}

func TestRunnerRepairsMissingDuration(t *testing.T) {
	probe := healthyProbe()
	probe.Format.Duration = ""
	f := newFixture(t, &fakeMedia{probeResult: probe})

	if err := f.runner.Run(context.Background(), f.rec); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rec := f.reload(t)
	if rec.Status != recording.StatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if !f.media.called("remux") {
		t.Fatal("expected remux for container missing duration")
	}
	if f.media.called("reencode") {
		t.Fatal("remux succeeded, re-encode should not run")
	}
	if rec.RepairedPath == "" {
		t.Fatal("repaired path not persisted")
	}
	if !strings.HasSuffix(rec.RepairedPath, "_repaired.mp4") {
		t.Fatalf("repaired path = %q", rec.RepairedPath)
	}
	if rec.CompressedPath != "" {
		t.Fatal("repaired MP4 should skip compression")
	}
	if f.media.called("compress") {
		t.Fatal("compress should not run for repaired MP4")
	}
}

func TestRunnerRemuxFallsBackToReencode(t *testing.T) {
	probe := healthyProbe()
	probe.Format.Duration = ""
	f := newFixture(t, &fakeMedia{probeResult: probe, remuxErr: errors.New("moov atom not found")})

	if err := f.runner.Run(context.Background(), f.rec); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rec := f.reload(t)
	if rec.Status != recording.StatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if !f.media.called("reencode") {
		t.Fatal("expected re-encode fallback after remux failure")
	}
	if rec.RepairedPath == "" {
		t.Fatal("repaired path not persisted")
	}
}

func TestRunnerRepairFailureIsTerminal(t *testing.T) {
	probe := healthyProbe()
	probe.Format.Duration = ""
	f := newFixture(t, &fakeMedia{
		probeResult: probe,
		remuxErr:    errors.New("remux exploded"),
		reencodeErr: errors.New("re-encode exploded"),
	})

	if err := f.runner.Run(context.Background(), f.rec); err == nil {
		t.Fatal("expected repair failure to propagate")
	}

	rec := f.reload(t)
	if rec.Status != recording.StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if !strings.Contains(rec.ErrorMessage, "repair") {
		t.Fatalf("error message = %q, want repair context", rec.ErrorMessage)
	}
}

func TestRunnerCorruptionGetsGuidance(t *testing.T) {
	probeErr := &ffmpeg.ToolError{
		Tool:   "ffprobe",
		Op:     "probe",
		Output: "EBML header parsing failed",
		Err:    errors.New("exit status 1"),
	}
	f := newFixture(t, &fakeMedia{probeErr: probeErr})

	if err := f.runner.Run(context.Background(), f.rec); err == nil {
		t.Fatal("expected corruption to fail the pipeline")
	}

	rec := f.reload(t)
	if rec.Status != recording.StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if rec.ErrorMessage != validate.CorruptionGuidance {
		t.Fatalf("error message = %q, want corruption guidance", rec.ErrorMessage)
	}
}

func TestRunnerTruncatesErrorMessages(t *testing.T) {
	f := newFixture(t, &fakeMedia{probeResult: healthyProbe()})
	f.cfg.Workflow.ErrorMessageMaxChars = 40
	f.trans.err = errors.New(strings.Repeat("whisper blew up ", 50))

	if err := f.runner.Run(context.Background(), f.rec); err == nil {
		t.Fatal("expected transcription failure to propagate")
	}

	rec := f.reload(t)
	if rec.Status != recording.StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if len(rec.ErrorMessage) > 40 {
		t.Fatalf("error message length = %d, want <= 40", len(rec.ErrorMessage))
	}
}

func TestRunnerFailsOnEmptyTranscript(t *testing.T) {
	f := newFixture(t, &fakeMedia{probeResult: healthyProbe()})
	f.trans.result = whisper.Result{Language: "en"}

	if err := f.runner.Run(context.Background(), f.rec); err == nil {
		t.Fatal("expected summarize to fail when whisper produced no segments")
	}

	rec := f.reload(t)
	if rec.Status != recording.StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if f.summ.calls != 0 {
		t.Fatal("summarizer should never receive an empty transcript")
	}
	if !strings.Contains(rec.ErrorMessage, "no speech") {
		t.Fatalf("error message = %q, want empty transcript explanation", rec.ErrorMessage)
	}
}

func TestRunnerTruncatesOnRuneBoundary(t *testing.T) {
	f := newFixture(t, &fakeMedia{probeResult: healthyProbe()})
	f.cfg.Workflow.ErrorMessageMaxChars = 45
	f.trans.err = errors.New(strings.Repeat("ü", 50))

	if err := f.runner.Run(context.Background(), f.rec); err == nil {
		t.Fatal("expected transcription failure to propagate")
	}

	rec := f.reload(t)
	if !utf8.ValidString(rec.ErrorMessage) {
		t.Fatalf("error message is not valid UTF-8: %q", rec.ErrorMessage)
	}
	if got := utf8.RuneCountInString(rec.ErrorMessage); got > 45 {
		t.Fatalf("error message rune count = %d, want <= 45", got)
	}
}

func TestRunnerSummarizerDisabled(t *testing.T) {
	f := newFixture(t, &fakeMedia{probeResult: healthyProbe()})
	f.cfg.Summarizer.Enabled = false

	if err := f.runner.Run(context.Background(), f.rec); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rec := f.reload(t)
	if rec.Status != recording.StatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if rec.SummaryText != "" {
		t.Fatalf("summary = %q, want empty when disabled", rec.SummaryText)
	}
	if f.summ.calls != 0 {
		t.Fatal("summarizer should not be called when disabled")
	}
}

func TestRunnerCompressionDisabled(t *testing.T) {
	f := newFixture(t, &fakeMedia{probeResult: healthyProbe()})
	f.cfg.Compression.Enabled = false

	if err := f.runner.Run(context.Background(), f.rec); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rec := f.reload(t)
	if rec.CompressedPath != "" {
		t.Fatal("compressed path should stay empty when compression is disabled")
	}
	if f.media.called("compress") {
		t.Fatal("compress should not run when disabled")
	}
}

func TestRunnerStartStatuses(t *testing.T) {
	f := newFixture(t, &fakeMedia{probeResult: healthyProbe()})

	statuses := f.runner.StartStatuses()
	if len(statuses) != 6 {
		t.Fatalf("start statuses = %d, want 6", len(statuses))
	}
	if statuses[0] != recording.StatusUploaded {
		t.Fatalf("first start status = %s, want uploaded", statuses[0])
	}
}
