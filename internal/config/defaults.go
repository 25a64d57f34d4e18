package config

const (
	defaultDataDir                = "~/.local/share/harvest"
	defaultLogDir                 = "~/.local/share/harvest/logs"
	defaultArchiveName            = "archive.db"
	defaultSourceTimeoutSeconds   = 30
	defaultSourceUserAgent        = "harvest/dev"
	defaultResolveConcurrency     = 4
	defaultIgnoreUpstreamFailures = true
	defaultArchiveKeep            = 20
	defaultExportFormat           = "json"
	defaultExportIndent           = true
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Source: Source{
			TimeoutSeconds: defaultSourceTimeoutSeconds,
			UserAgent:      defaultSourceUserAgent,
		},
		Resolve: Resolve{
			Concurrency:            defaultResolveConcurrency,
			IgnoreUpstreamFailures: defaultIgnoreUpstreamFailures,
		},
		Archive: Archive{
			Keep: defaultArchiveKeep,
		},
		Export: Export{
			Format: defaultExportFormat,
			Indent: defaultExportIndent,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
