package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validateDiarization(); err != nil {
		return err
	}
	if err := c.validateSummarizer(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxSizeMB <= 0 {
		return errors.New("upload.max_size_mb must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return errors.New("upload.allowed_extensions must include at least one extension")
	}
	return nil
}

func (c *Config) validateValidation() error {
	if c.Validation.MinBytes < 0 {
		return errors.New("validation.min_bytes must be >= 0")
	}
	if c.Validation.ProbeTimeoutSeconds <= 0 {
		return errors.New("validation.probe_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDiarization() error {
	d := c.Diarization
	if d.PauseThreshold <= 0 {
		return errors.New("diarization.pause_threshold must be positive (seconds)")
	}
	if d.ShortSegmentThreshold <= 0 {
		return errors.New("diarization.short_segment_threshold must be positive (seconds)")
	}
	if d.MergeThreshold <= 0 {
		return errors.New("diarization.merge_threshold must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateSummarizer() error {
	if !c.Summarizer.Enabled {
		return nil
	}
	if c.Summarizer.BaseURL == "" {
		return errors.New("summarizer.base_url must be set when summarizer.enabled is true")
	}
	if c.Summarizer.Temperature < 0 || c.Summarizer.Temperature > 2 {
		return errors.New("summarizer.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.workers":                 c.Workflow.Workers,
		"workflow.queue_poll_interval":     c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":    c.Workflow.ErrorRetryInterval,
		"workflow.error_message_max_chars": c.Workflow.ErrorMessageMaxChars,
		"ffmpeg.remux_timeout_seconds":     c.FFmpeg.RemuxTimeoutSeconds,
		"ffmpeg.reencode_timeout_seconds":  c.FFmpeg.ReencodeTimeoutSeconds,
		"ffmpeg.extract_timeout_seconds":   c.FFmpeg.ExtractTimeoutSeconds,
		"ffmpeg.compress_timeout_seconds":  c.FFmpeg.CompressTimeoutSeconds,
		"whisper.timeout_seconds":          c.Whisper.TimeoutSeconds,
	})
}

func (c *Config) validateWatch() error {
	if c.Watch.Enabled && c.Watch.Dir == "" {
		return errors.New("watch.dir must be set when watch.enabled is true")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
