package config

const (
	defaultVideosDir     = "~/.local/share/recap/videos"
	defaultAudioDir      = "~/.local/share/recap/audio"
	defaultCompressedDir = "~/.local/share/recap/compressed"
	defaultLogDir        = "~/.local/share/recap/logs"
	defaultDatabasePath  = "~/.local/share/recap/recap.db"
	defaultAPIBind       = "127.0.0.1:8737"

	defaultMaxUploadMB        = 1024
	defaultValidationMinBytes = 10000

	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultProbeTimeoutSeconds    = 30
	defaultRemuxTimeoutSeconds    = 300
	defaultReencodeTimeoutSeconds = 1800
	defaultExtractTimeoutSeconds  = 300
	defaultCompressTimeoutSeconds = 1800

	defaultWhisperBinary         = "whisper"
	defaultWhisperModel          = "base"
	defaultWhisperTimeoutSeconds = 7200

	defaultPauseThreshold        = 2.0
	defaultShortSegmentThreshold = 1.0
	defaultMergeThreshold        = 2.0

	defaultSummarizerBaseURL        = "http://127.0.0.1:11434"
	defaultSummarizerModel          = "llama3"
	defaultSummarizerTemperature    = 0.3
	defaultSummarizerTimeoutSeconds = 600
	defaultSummarizerMaxRetries     = 2

	defaultWorkers              = 2
	defaultQueuePollInterval    = 5
	defaultErrorRetryInterval   = 10
	defaultErrorMessageMaxChars = 500

	defaultWatchSettleSeconds = 3

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
	defaultLogMaxMB  = 50
	defaultLogKeep   = 5
)

func defaultAllowedExtensions() []string {
	return []string{"webm", "mp4", "mkv", "avi"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			VideosDir:     defaultVideosDir,
			AudioDir:      defaultAudioDir,
			CompressedDir: defaultCompressedDir,
			LogDir:        defaultLogDir,
			DatabasePath:  defaultDatabasePath,
			APIBind:       defaultAPIBind,
		},
		Upload: Upload{
			AllowedExtensions: defaultAllowedExtensions(),
			MaxSizeMB:         defaultMaxUploadMB,
		},
		Validation: Validation{
			MinBytes:            defaultValidationMinBytes,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:           defaultFFmpegBinary,
			FFprobeBinary:          defaultFFprobeBinary,
			RemuxTimeoutSeconds:    defaultRemuxTimeoutSeconds,
			ReencodeTimeoutSeconds: defaultReencodeTimeoutSeconds,
			ExtractTimeoutSeconds:  defaultExtractTimeoutSeconds,
			CompressTimeoutSeconds: defaultCompressTimeoutSeconds,
		},
		Whisper: Whisper{
			Binary:         defaultWhisperBinary,
			Model:          defaultWhisperModel,
			TimeoutSeconds: defaultWhisperTimeoutSeconds,
		},
		Diarization: Diarization{
			PauseThreshold:        defaultPauseThreshold,
			ShortSegmentThreshold: defaultShortSegmentThreshold,
			MergeThreshold:        defaultMergeThreshold,
		},
		Summarizer: Summarizer{
			Enabled:        true,
			BaseURL:        defaultSummarizerBaseURL,
			Model:          defaultSummarizerModel,
			Temperature:    defaultSummarizerTemperature,
			TimeoutSeconds: defaultSummarizerTimeoutSeconds,
			MaxRetries:     defaultSummarizerMaxRetries,
		},
		Compression: Compression{
			Enabled: true,
		},
		Workflow: Workflow{
			Workers:              defaultWorkers,
			QueuePollInterval:    defaultQueuePollInterval,
			ErrorRetryInterval:   defaultErrorRetryInterval,
			ErrorMessageMaxChars: defaultErrorMessageMaxChars,
		},
		Watch: Watch{
			SettleSeconds: defaultWatchSettleSeconds,
		},
		Logging: Logging{
			Format:    defaultLogFormat,
			Level:     defaultLogLevel,
			FileMaxMB: defaultLogMaxMB,
			FileKeep:  defaultLogKeep,
		},
	}
}
