package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recap/internal/api"
	"recap/internal/config"
	"recap/internal/daemon"
	"recap/internal/diarize"
	"recap/internal/pipeline"
	"recap/internal/recording"
	"recap/internal/services/ffmpeg"
	"recap/internal/services/whisper"
	"recap/internal/testsupport"
)

var ebmlHeader = []byte{0x1A, 0x45, 0xDF, 0xA3}

type fakeMedia struct{}

func (fakeMedia) Probe(ctx context.Context, path string) (*ffmpeg.Result, error) {
	return &ffmpeg.Result{
		Streams: []ffmpeg.Stream{
			{CodecType: "video", CodecName: "vp8"},
			{CodecType: "audio", CodecName: "opus"},
		},
		Format: ffmpeg.Format{FormatName: "matroska,webm", Duration: "30.5"},
	}, nil
}

func (fakeMedia) Remux(ctx context.Context, source, dest string) error        { return nil }
func (fakeMedia) Reencode(ctx context.Context, source, dest string) error     { return nil }
func (fakeMedia) ExtractAudio(ctx context.Context, source, dest string) error { return nil }
func (fakeMedia) Compress(ctx context.Context, source, dest string) error     { return nil }

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(ctx context.Context, audioPath, outputDir string) (whisper.Result, error) {
	return whisper.Result{
		Language:        "en",
		FullText:        "hello world how are you",
		DurationSeconds: 9.0,
		Segments: []diarize.Segment{
			{Start: 0, End: 3, Text: "hello world"},
			{Start: 6, End: 9, Text: "how are you"},
		},
	}, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, transcript string, numSpeakers int) (string, error) {
	return "EXECUTIVE SUMMARY: a short chat", nil
}

func (fakeSummarizer) HealthCheck(ctx context.Context) error { return nil }

type fixture struct {
	cfg    *config.Config
	daemon *daemon.Daemon
	store  *recording.Store
	base   string
}

func startDaemon(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Summarizer.Enabled = true
	store := testsupport.MustOpenStore(t, cfg)
	runner := pipeline.NewRunner(cfg, store, nil, pipeline.Deps{
		Media:       fakeMedia{},
		Transcriber: fakeTranscriber{},
		Summarizer:  fakeSummarizer{},
	})
	d, err := daemon.New(cfg, store, nil, runner)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return &fixture{cfg: cfg, daemon: d, store: store, base: testsupport.BaseDir(cfg)}
}

func (f *fixture) url(path string) string {
	return "http://" + f.daemon.APIAddr() + path
}

func (f *fixture) getJSON(t *testing.T, path string, out any) {
	t.Helper()
	resp, err := http.Get(f.url(path))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s returned %d: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
}

func (f *fixture) upload(t *testing.T, filename, title string, content []byte) api.UploadResponse {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			t.Fatalf("write title field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp, err := http.Post(f.url("/api/recordings"), writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload returned %d: %s", resp.StatusCode, body)
	}
	var uploaded api.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return uploaded
}

func (f *fixture) waitForStatus(t *testing.T, id int64, want recording.Status) *recording.Recording {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := f.store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if rec != nil && rec.Status == want {
			return rec
		}
		if rec != nil && rec.Status == recording.StatusFailed && want != recording.StatusFailed {
			t.Fatalf("recording failed: %s", rec.ErrorMessage)
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("recording %d never reached status %s", id, want)
	return nil
}

func webmContent() []byte {
	content := make([]byte, 20000)
	copy(content, ebmlHeader)
	return content
}

func TestUploadRunsFullPipeline(t *testing.T) {
	f := startDaemon(t)

	uploaded := f.upload(t, "standup.webm", "Monday standup", webmContent())
	if uploaded.Recording.Title != "Monday standup" {
		t.Fatalf("title = %q, want %q", uploaded.Recording.Title, "Monday standup")
	}
	if uploaded.Recording.Status != string(recording.StatusUploaded) {
		t.Fatalf("initial status = %q", uploaded.Recording.Status)
	}

	rec := f.waitForStatus(t, uploaded.Recording.ID, recording.StatusCompleted)
	if rec.SummaryText == "" {
		t.Fatal("expected summary after completion")
	}
	if rec.Language != "en" {
		t.Fatalf("language = %q, want en", rec.Language)
	}
	if !strings.HasPrefix(rec.SourcePath, filepath.Join(f.base, "videos")) {
		t.Fatalf("source path %q not under videos dir", rec.SourcePath)
	}

	var detail api.RecordingResponse
	f.getJSON(t, fmt.Sprintf("/api/recordings/%d", rec.ID), &detail)
	if !detail.Recording.HasTranscript || !detail.Recording.HasSummary {
		t.Fatalf("detail flags = transcript %v summary %v",
			detail.Recording.HasTranscript, detail.Recording.HasSummary)
	}
	if detail.Recording.TranscriptText == "" {
		t.Fatal("expected formatted transcript text")
	}
}

func TestListFiltersAndStatus(t *testing.T) {
	f := startDaemon(t)

	uploaded := f.upload(t, "talk.webm", "", webmContent())
	f.waitForStatus(t, uploaded.Recording.ID, recording.StatusCompleted)

	var list api.RecordingListResponse
	f.getJSON(t, "/api/recordings?status=completed", &list)
	if len(list.Recordings) != 1 {
		t.Fatalf("completed list length = %d, want 1", len(list.Recordings))
	}
	if list.Recordings[0].Title != "talk" {
		t.Fatalf("default title = %q, want basename", list.Recordings[0].Title)
	}

	f.getJSON(t, "/api/recordings?status=failed", &list)
	if len(list.Recordings) != 0 {
		t.Fatalf("failed list length = %d, want 0", len(list.Recordings))
	}

	resp, err := http.Get(f.url("/api/recordings?status=bogus"))
	if err != nil {
		t.Fatalf("GET with bogus status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus status returned %d, want 400", resp.StatusCode)
	}

	var status api.DaemonStatus
	f.getJSON(t, "/api/status", &status)
	if !status.Running {
		t.Fatal("status should report running")
	}
	if status.Stats["completed"] != 1 {
		t.Fatalf("stats completed = %d, want 1", status.Stats["completed"])
	}
	if len(status.Stages) == 0 || len(status.Dependencies) == 0 {
		t.Fatal("status should include stage and dependency checks")
	}
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	f := startDaemon(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "notes.txt")
	_, _ = part.Write([]byte("not a recording"))
	writer.Close()

	resp, err := http.Post(f.url("/api/recordings"), writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("upload returned %d, want 400", resp.StatusCode)
	}
}

func TestRenameSpeakerAndTranscriptEndpoint(t *testing.T) {
	f := startDaemon(t)

	uploaded := f.upload(t, "duet.webm", "", webmContent())
	rec := f.waitForStatus(t, uploaded.Recording.ID, recording.StatusCompleted)

	resp, err := http.Post(
		f.url(fmt.Sprintf("/api/recordings/%d/speakers/0", rec.ID)),
		"application/json",
		strings.NewReader(`{"displayName":"Alex"}`),
	)
	if err != nil {
		t.Fatalf("POST rename: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename returned %d, want 200", resp.StatusCode)
	}

	textResp, err := http.Get(f.url(fmt.Sprintf("/api/recordings/%d/transcript", rec.ID)))
	if err != nil {
		t.Fatalf("GET transcript: %v", err)
	}
	defer textResp.Body.Close()
	if textResp.StatusCode != http.StatusOK {
		t.Fatalf("transcript returned %d, want 200", textResp.StatusCode)
	}
	body, err := io.ReadAll(textResp.Body)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.Contains(string(body), "Alex") {
		t.Fatalf("transcript missing renamed speaker: %s", body)
	}
}

func TestRenameSpeakerRejectedWhileProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := pipeline.NewRunner(cfg, store, nil, pipeline.Deps{
		Media:       fakeMedia{},
		Transcriber: fakeTranscriber{},
		Summarizer:  fakeSummarizer{},
	})

	// Park a recording mid-transcription before the daemon starts polling
	// so the pipeline never advances it.
	sourcePath := filepath.Join(cfg.Paths.VideosDir, "busy.webm")
	testsupport.WriteFileWithHeader(t, sourcePath, ebmlHeader, 20000)
	rec := testsupport.NewRecording(t, store, "busy", sourcePath)
	rec.Status = recording.StatusTranscribing
	if err := store.Update(context.Background(), rec); err != nil {
		t.Fatalf("store.Update: %v", err)
	}

	d, err := daemon.New(cfg, store, nil, runner)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	f := &fixture{cfg: cfg, daemon: d, store: store, base: testsupport.BaseDir(cfg)}

	resp, err := http.Post(
		f.url(fmt.Sprintf("/api/recordings/%d/speakers/0", rec.ID)),
		"application/json",
		strings.NewReader(`{"displayName":"Alex"}`),
	)
	if err != nil {
		t.Fatalf("POST rename: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("rename returned %d, want 409 while recording is processing", resp.StatusCode)
	}
}

func TestDeleteRemovesRowAndArtifacts(t *testing.T) {
	f := startDaemon(t)

	uploaded := f.upload(t, "gone.webm", "", webmContent())
	rec := f.waitForStatus(t, uploaded.Recording.ID, recording.StatusCompleted)
	if _, err := os.Stat(rec.SourcePath); err != nil {
		t.Fatalf("source file missing before delete: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, f.url(fmt.Sprintf("/api/recordings/%d", rec.ID)), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete returned %d, want 204", resp.StatusCode)
	}

	got, err := f.store.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID after delete: %v", err)
	}
	if got != nil {
		t.Fatal("recording row should be gone")
	}
	if _, err := os.Stat(rec.SourcePath); !os.IsNotExist(err) {
		t.Fatalf("source file should be removed, stat err = %v", err)
	}

	resp, err = http.Get(f.url(fmt.Sprintf("/api/recordings/%d", rec.ID)))
	if err != nil {
		t.Fatalf("GET deleted: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET deleted returned %d, want 404", resp.StatusCode)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	f := startDaemon(t)

	runner := pipeline.NewRunner(f.cfg, f.store, nil, pipeline.Deps{
		Media:       fakeMedia{},
		Transcriber: fakeTranscriber{},
		Summarizer:  fakeSummarizer{},
	})
	second, err := daemon.New(f.cfg, f.store, nil, runner)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance should be refused")
	}
}

func TestIngestFileFromWatchDir(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchDir())
	cfg.Summarizer.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)
	runner := pipeline.NewRunner(cfg, store, nil, pipeline.Deps{
		Media:       fakeMedia{},
		Transcriber: fakeTranscriber{},
		Summarizer:  fakeSummarizer{},
	})
	d, err := daemon.New(cfg, store, nil, runner)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	defer d.Stop()

	dropPath := filepath.Join(cfg.Watch.Dir, "dropped.webm")
	if err := os.WriteFile(dropPath, webmContent(), 0o644); err != nil {
		t.Fatalf("write drop file: %v", err)
	}

	f := &fixture{daemon: d, store: store, base: testsupport.BaseDir(cfg)}
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		recs, err := store.List(context.Background(), recording.ListOptions{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(recs) == 1 {
			f.waitForStatus(t, recs[0].ID, recording.StatusCompleted)
			if _, err := os.Stat(dropPath); !os.IsNotExist(err) {
				t.Fatalf("dropped file should have moved, stat err = %v", err)
			}
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("dropped file was never ingested")
}
