package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagScript     = flag.String("script", "", "Path to a packing script (overrides the configured pipeline)")
	flagSeed       = flag.Int64("seed", 0, "Random seed override (0 keeps the configured seed)")
	flagFraction   = flag.Float64("fraction", 0, "Target packing fraction override")
	flagBestEffort = flag.Bool("best-effort", false, "Keep the densest valid arrangement instead of failing")
	flagOut        = flag.String("out", "", "Write the packed arrangement to this YAML file")
	flagInitConfig = flag.Bool("init-config", false, "Write the default config to the user config directory and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// InitConfigRequested reports whether --init-config was passed.
func InitConfigRequested() bool {
	return *flagInitConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagScript != "" {
		cfg.Script = *flagScript
	}
	if *flagSeed != 0 {
		cfg.Packing.Seed = *flagSeed
	}
	if *flagFraction > 0 {
		cfg.Packing.Fraction = *flagFraction
	}
	if *flagBestEffort {
		cfg.Packing.BestEffort = true
	}
	if *flagOut != "" {
		cfg.Output = *flagOut
	}
}
