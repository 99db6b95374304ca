package config

const (
	defaultDataDir = "~/.local/share/aircheck"
	defaultLogDir  = "~/.local/share/aircheck/logs"

	defaultChunkSeconds     = 10
	defaultSampleRate       = 44100
	defaultChannels         = 2
	defaultReadTimeout      = 30
	defaultBackoffInitial   = 5
	defaultBackoffCap       = 60
	defaultMaxStreamRetries = 3

	defaultDetectionInterval = 60
	defaultMergeWindow       = 15
	defaultMaxPlaySeconds    = 180
	defaultSweepSeconds      = 60
	defaultMaxStations       = 5

	defaultLocalThreshold      = 0.7
	defaultChromaThreshold     = 0.85
	defaultAcoustIDThreshold   = 0.8
	defaultAudDThreshold       = 0.6
	defaultFuzzyTitleThreshold = 0.8

	// Base URLs are bare hosts; each client appends its own endpoint path.
	defaultAcoustIDBaseURL    = "https://api.acoustid.org"
	defaultAudDBaseURL        = "https://api.audd.io"
	defaultMusicBrainzBaseURL = "https://musicbrainz.org"
	defaultMusicBrainzAgent   = "aircheck/0.1 (https://github.com/aircheck)"
	defaultProviderTimeout    = 5

	defaultBreakerFailures = 10
	defaultBreakerWindow   = 60
	defaultBreakerOpen     = 300

	defaultNotifyTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Ingest: Ingest{
			ChunkSeconds:     defaultChunkSeconds,
			SampleRate:       defaultSampleRate,
			Channels:         defaultChannels,
			ReadTimeout:      defaultReadTimeout,
			BackoffInitial:   defaultBackoffInitial,
			BackoffCap:       defaultBackoffCap,
			MaxStreamRetries: defaultMaxStreamRetries,
		},
		Detection: Detection{
			IntervalSeconds:     defaultDetectionInterval,
			MergeWindowSeconds:  defaultMergeWindow,
			MaxPlaySeconds:      defaultMaxPlaySeconds,
			SweepSeconds:        defaultSweepSeconds,
			MaxStations:         defaultMaxStations,
			LocalThreshold:      defaultLocalThreshold,
			ChromaThreshold:     defaultChromaThreshold,
			AcoustIDThreshold:   defaultAcoustIDThreshold,
			AudDThreshold:       defaultAudDThreshold,
			FuzzyTitleThreshold: defaultFuzzyTitleThreshold,
		},
		AcoustID: AcoustID{
			BaseURL:        defaultAcoustIDBaseURL,
			TimeoutSeconds: defaultProviderTimeout,
		},
		AudD: AudD{
			BaseURL:        defaultAudDBaseURL,
			TimeoutSeconds: defaultProviderTimeout,
		},
		MusicBrainz: MusicBrainz{
			BaseURL:        defaultMusicBrainzBaseURL,
			UserAgent:      defaultMusicBrainzAgent,
			TimeoutSeconds: defaultProviderTimeout,
		},
		Breaker: Breaker{
			FailureThreshold: defaultBreakerFailures,
			WindowSeconds:    defaultBreakerWindow,
			OpenSeconds:      defaultBreakerOpen,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
