package config

const (
	defaultCacheDir       = "~/.cache/cardloom"
	defaultOutputDir      = "~/cardloom/out"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultTTSVoice       = "alloy"
	defaultTTSLanguage    = "de"
	defaultTTSFormat      = "mp3"
	defaultTTSTimeout     = 30
	defaultImagesTimeout  = 30
	defaultQueryBaseURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultQueryModel     = "google/gemini-3-flash-preview"
	defaultQueryTimeout   = 20
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = 1
	defaultRetryMaxDelay  = 30
	defaultPacePerSecond  = 1.0
	defaultWorkers        = 1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:  defaultCacheDir,
			OutputDir: defaultOutputDir,
		},
		TTS: TTS{
			Voice:          defaultTTSVoice,
			Language:       defaultTTSLanguage,
			Format:         defaultTTSFormat,
			TimeoutSeconds: defaultTTSTimeout,
		},
		Images: Images{
			Enabled:        true,
			TimeoutSeconds: defaultImagesTimeout,
		},
		Query: Query{
			Enabled:        true,
			BaseURL:        defaultQueryBaseURL,
			Model:          defaultQueryModel,
			TimeoutSeconds: defaultQueryTimeout,
		},
		Retry: Retry{
			MaxAttempts:      defaultRetryAttempts,
			BaseDelaySeconds: defaultRetryBaseDelay,
			MaxDelaySeconds:  defaultRetryMaxDelay,
			PacePerSecond:    defaultPacePerSecond,
		},
		Enrich: Enrich{
			Workers: defaultWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
