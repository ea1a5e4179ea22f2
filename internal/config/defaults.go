package config

const (
	defaultOutputDir             = "~/videos"
	defaultStagingDir            = "~/.local/share/platter/staging"
	defaultLogDir                = "~/.local/share/platter/logs"
	defaultJournalPath           = "~/.local/share/platter/journal.db"
	defaultOpticalDrive          = "/dev/sr0"
	defaultScanTimeout           = 300
	defaultScanRetries           = 2
	defaultEpisodeMinSeconds     = 1200
	defaultEpisodeMaxSeconds     = 3600
	defaultCompilationMinSeconds = 5400
	defaultTVDBBaseURL           = "https://api4.thetvdb.com/v4"
	defaultTMDBBaseURL           = "https://api.themoviedb.org/3"
	defaultTMDBLanguage          = "en-US"
	defaultEncoder               = "nvenc_h265_10bit"
	defaultFallbackEncoder       = "x264"
	defaultEncodeQuality         = 20
	defaultEncodeTimeout         = 7200
	defaultEncodeRetries         = 1
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:   defaultOutputDir,
			StagingDir:  defaultStagingDir,
			LogDir:      defaultLogDir,
			JournalPath: defaultJournalPath,
		},
		Drive: Drive{
			Device:      defaultOpticalDrive,
			ScanTimeout: defaultScanTimeout,
			ScanRetries: defaultScanRetries,
		},
		Episodes: Episodes{
			MinSeconds:            defaultEpisodeMinSeconds,
			MaxSeconds:            defaultEpisodeMaxSeconds,
			CompilationMinSeconds: defaultCompilationMinSeconds,
		},
		TVDB: TVDB{
			BaseURL: defaultTVDBBaseURL,
		},
		TMDB: TMDB{
			BaseURL:  defaultTMDBBaseURL,
			Language: defaultTMDBLanguage,
		},
		Encode: Encode{
			Encoder:         defaultEncoder,
			FallbackEncoder: defaultFallbackEncoder,
			Quality:         defaultEncodeQuality,
			Timeout:         defaultEncodeTimeout,
			Retries:         defaultEncodeRetries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
