package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, database, and bind address configuration.
type Paths struct {
	VideosDir     string `toml:"videos_dir"`
	AudioDir      string `toml:"audio_dir"`
	CompressedDir string `toml:"compressed_dir"`
	LogDir        string `toml:"log_dir"`
	DatabasePath  string `toml:"database_path"`
	APIBind       string `toml:"api_bind"`
}

// Upload contains intake rules for incoming recordings.
type Upload struct {
	AllowedExtensions []string `toml:"allowed_extensions"`
	MaxSizeMB         int64    `toml:"max_size_mb"`
}

// Validation contains container validation settings.
type Validation struct {
	MinBytes            int64 `toml:"min_bytes"`
	ProbeTimeoutSeconds int   `toml:"probe_timeout_seconds"`
}

// FFmpeg contains media tool binaries and per-operation timeouts.
type FFmpeg struct {
	FFmpegBinary           string `toml:"ffmpeg_binary"`
	FFprobeBinary          string `toml:"ffprobe_binary"`
	RemuxTimeoutSeconds    int    `toml:"remux_timeout_seconds"`
	ReencodeTimeoutSeconds int    `toml:"reencode_timeout_seconds"`
	ExtractTimeoutSeconds  int    `toml:"extract_timeout_seconds"`
	CompressTimeoutSeconds int    `toml:"compress_timeout_seconds"`
}

// Whisper contains speech-to-text settings.
type Whisper struct {
	Binary         string `toml:"binary"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Diarization contains speaker smoothing thresholds, all in seconds.
type Diarization struct {
	PauseThreshold        float64 `toml:"pause_threshold"`
	ShortSegmentThreshold float64 `toml:"short_segment_threshold"`
	MergeThreshold        float64 `toml:"merge_threshold"`
}

// Summarizer contains settings for the summary generation backend.
type Summarizer struct {
	Enabled        bool    `toml:"enabled"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries"`
}

// Workflow contains pipeline concurrency and polling settings.
type Workflow struct {
	Workers              int `toml:"workers"`
	QueuePollInterval    int `toml:"queue_poll_interval"`
	ErrorRetryInterval   int `toml:"error_retry_interval"`
	ErrorMessageMaxChars int `toml:"error_message_max_chars"`
}

// Compression controls the optional playback-copy stage.
type Compression struct {
	Enabled bool `toml:"enabled"`
}

// Watch contains drop directory settings for automatic intake.
type Watch struct {
	Enabled       bool   `toml:"enabled"`
	Dir           string `toml:"dir"`
	SettleSeconds int    `toml:"settle_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format    string `toml:"format"`
	Level     string `toml:"level"`
	FileMaxMB int    `toml:"file_max_mb"`
	FileKeep  int    `toml:"file_keep"`
}

// Config encapsulates all configuration values for recap.
//
// Configuration sections by subsystem:
//   - Paths: artifact directories, database location, API bind address
//   - Upload: intake extension allowlist and size cap
//   - Validation: container validation thresholds
//   - FFmpeg: tool binaries plus repair/extract/compress timeouts
//   - Whisper: transcription binary, model, and timeout
//   - Diarization: speaker smoothing thresholds
//   - Summarizer: summary backend connection settings
//   - Compression: playback copy toggle
//   - Workflow: worker count and polling intervals
//   - Watch: drop directory intake
//   - Logging: log format, level, and rotation
type Config struct {
	Paths       Paths       `toml:"paths"`
	Upload      Upload      `toml:"upload"`
	Validation  Validation  `toml:"validation"`
	FFmpeg      FFmpeg      `toml:"ffmpeg"`
	Whisper     Whisper     `toml:"whisper"`
	Diarization Diarization `toml:"diarization"`
	Summarizer  Summarizer  `toml:"summarizer"`
	Compression Compression `toml:"compression"`
	Workflow    Workflow    `toml:"workflow"`
	Watch       Watch       `toml:"watch"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/recap/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("recap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.VideosDir,
		c.Paths.AudioDir,
		c.Paths.CompressedDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.DatabasePath),
	}
	if c.Watch.Enabled && strings.TrimSpace(c.Watch.Dir) != "" {
		dirs = append(dirs, c.Watch.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AllowsExtension reports whether the upload extension (with or without the
// leading dot) is accepted.
func (c *Config) AllowsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range c.Upload.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Upload.MaxSizeMB * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
