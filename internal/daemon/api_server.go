package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"recap/internal/api"
	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/recording"
)

type apiServer struct {
	bind         string
	logger       *slog.Logger
	daemon       *Daemon
	recordingSvc *api.RecordingService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address not configured")
	}

	srv := &apiServer{
		bind:         bind,
		logger:       logger,
		daemon:       d,
		recordingSvc: api.NewRecordingService(d.store),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/recordings", srv.handleRecordings)
	mux.HandleFunc("/api/recordings/", srv.handleRecordingItem)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	depStatuses := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		depStatuses[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	stages := make([]api.StageHealth, len(status.Stages))
	for i, check := range status.Stages {
		stages[i] = api.StageHealth{Name: check.Name, Ready: check.Ready, Detail: check.Detail}
	}
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Active:       status.Active,
		Stats:        api.MergeStats(status.Stats),
		Stages:       stages,
		Dependencies: depStatuses,
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRecordings(w, r)
	case http.MethodPost:
		s.uploadRecording(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listRecordings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := recording.ListOptions{}
	if value := strings.TrimSpace(query.Get("status")); value != "" {
		status, ok := recording.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		opts.Status = status
	}
	opts.Limit, _ = strconv.Atoi(query.Get("limit"))
	opts.Offset, _ = strconv.Atoi(query.Get("offset"))

	recs, err := s.recordingSvc.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingListResponse{Recordings: recs})
}

// uploadRecording accepts a multipart upload with a "file" part and an
// optional "title" field.
func (s *apiServer) uploadRecording(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.daemon.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart upload with a file part required")
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !s.daemon.cfg.AllowsExtension(ext) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("extension %q not allowed", ext))
		return
	}

	dest := filepath.Join(s.daemon.cfg.Paths.VideosDir, uniqueFilename(header.Filename))
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "store upload: "+err.Error())
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		_ = os.Remove(dest)
		if errors.As(err, new(*http.MaxBytesError)) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d MB cap", s.daemon.cfg.Upload.MaxSizeMB))
			return
		}
		s.writeError(w, http.StatusInternalServerError, "store upload: "+err.Error())
		return
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		s.writeError(w, http.StatusInternalServerError, "store upload: "+err.Error())
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(header.Filename), ext)
	}
	rec, err := s.daemon.IngestFile(r.Context(), dest, title)
	if err != nil {
		_ = os.Remove(dest)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.UploadResponse{Recording: api.FromRecording(rec)})
}

// handleRecordingItem routes /api/recordings/{id}[/media|/transcript|/speakers/{label}].
func (s *apiServer) handleRecordingItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/recordings/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid recording id")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.describeRecording(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.deleteRecording(w, r, id)
	case len(parts) == 2 && parts[1] == "media" && r.Method == http.MethodGet:
		s.serveMedia(w, r, id)
	case len(parts) == 2 && parts[1] == "transcript" && r.Method == http.MethodGet:
		s.serveTranscript(w, r, id)
	case len(parts) == 3 && parts[1] == "speakers" && r.Method == http.MethodPost:
		s.renameSpeaker(w, r, id, parts[2])
	default:
		s.writeError(w, http.StatusNotFound, "recording not found")
	}
}

func (s *apiServer) describeRecording(w http.ResponseWriter, r *http.Request, id int64) {
	detail, err := s.recordingSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if detail == nil {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingResponse{Recording: *detail})
}

func (s *apiServer) deleteRecording(w http.ResponseWriter, r *http.Request, id int64) {
	removed, err := s.daemon.Remove(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) serveMedia(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	path := rec.PlaybackPath()
	if path == "" {
		s.writeError(w, http.StatusNotFound, "no playable artifact")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *apiServer) serveTranscript(w http.ResponseWriter, r *http.Request, id int64) {
	detail, err := s.recordingSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if detail == nil {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	if detail.TranscriptText == "" {
		s.writeError(w, http.StatusNotFound, "no transcript available")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, detail.TranscriptText)
}

func (s *apiServer) renameSpeaker(w http.ResponseWriter, r *http.Request, id int64, labelValue string) {
	label, err := strconv.Atoi(labelValue)
	if err != nil || label < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid speaker label")
		return
	}
	var req api.RenameSpeakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "displayName is required")
		return
	}

	rec, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	// Speaker rows are rewritten wholesale while a recording is being
	// processed, so renames are only accepted once it settles.
	if !recording.IsTerminal(rec.Status) {
		s.writeError(w, http.StatusConflict,
			fmt.Sprintf("recording is still processing (status %s); rename speakers once it finishes", rec.Status))
		return
	}

	renamed, err := s.daemon.store.RenameSpeaker(r.Context(), id, label, name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !renamed {
		s.writeError(w, http.StatusNotFound, "speaker not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"displayName": name})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Warn("encode api response failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger
}
