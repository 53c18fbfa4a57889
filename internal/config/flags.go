package config

import "flag"

var (
	flagConfig          = flag.String("config", "", "Path to config file")
	flagDebug           = flag.Bool("debug", false, "Enable debug logging")
	flagWindowed        = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen      = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth           = flag.Int("width", 0, "Window width")
	flagHeight          = flag.Int("height", 0, "Window height")
	flagAlphaThreshold  = flag.Int("alpha-threshold", -1, "Drop splats with alpha at or below this value on load")
	flagMaxSortDistance = flag.Float64("sort-distance", 0, "Maximum node distance that is depth sorted")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the positional arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	if *flagAlphaThreshold >= 0 && *flagAlphaThreshold <= 255 {
		cfg.Viewer.AlphaThreshold = uint8(*flagAlphaThreshold)
	}
	if *flagMaxSortDistance > 0 {
		cfg.Viewer.MaxSortDistance = float32(*flagMaxSortDistance)
	}
}
