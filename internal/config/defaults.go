package config

const (
	defaultSettingsDir = "~/.config/attune"
	defaultDataDir     = "~/.local/share/attune"
	defaultLogFormat   = "auto"
	defaultLogLevel    = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SettingsDir: defaultSettingsDir,
			DataDir:     defaultDataDir,
		},
		Scan: Scan{
			Workers: 0,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
