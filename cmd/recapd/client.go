package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recap/internal/api"
	"recap/internal/config"
)

// apiClient talks to a running daemon over its HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(cfg *config.Config) *apiClient {
	bind := cfg.Paths.APIBind
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	return &apiClient{
		baseURL: "http://" + bind,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) status(ctx context.Context) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.getJSON(ctx, "/api/status", &status)
	return status, err
}

func (c *apiClient) list(ctx context.Context, status string) ([]api.Recording, error) {
	path := "/api/recordings"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var list api.RecordingListResponse
	if err := c.getJSON(ctx, path, &list); err != nil {
		return nil, err
	}
	return list.Recordings, nil
}

func (c *apiClient) get(ctx context.Context, id int64) (api.RecordingDetail, error) {
	var resp api.RecordingResponse
	err := c.getJSON(ctx, fmt.Sprintf("/api/recordings/%d", id), &resp)
	return resp.Recording, err
}

func (c *apiClient) transcript(ctx context.Context, id int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/recordings/%d/transcript", c.baseURL, id), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}

func (c *apiClient) upload(ctx context.Context, path, title string) (api.Recording, error) {
	var rec api.Recording

	file, err := os.Open(path)
	if err != nil {
		return rec, err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return rec, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return rec, err
	}
	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			return rec, err
		}
	}
	if err := writer.Close(); err != nil {
		return rec, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/recordings", &buf)
	if err != nil {
		return rec, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return rec, fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return rec, apiError(resp)
	}
	var uploaded api.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return rec, err
	}
	return uploaded.Recording, nil
}

func (c *apiClient) remove(ctx context.Context, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/api/recordings/%d", c.baseURL, id), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}

func (c *apiClient) renameSpeaker(ctx context.Context, id int64, label int, name string) error {
	payload, err := json.Marshal(api.RenameSpeakerRequest{DisplayName: name})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/recordings/%d/speakers/%d", c.baseURL, id, label),
		bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}
