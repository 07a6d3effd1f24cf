package config

// CLIOverrides holds the subset of StoreConfig that firedoc-inspect exposes
// as flags. An empty string field means "flag not set".
type CLIOverrides struct {
	ConfigPath string
	GCPolicy   string
	Backend    string
	Path       string
}

// ApplyOverrides layers env and then cli on top of cfg, in that precedence
// order (cli wins over env, env wins over whatever cfg already holds). It
// mutates cfg in place and returns it for chaining.
func ApplyOverrides(cfg *StoreConfig, env EnvOverrides, cli CLIOverrides) *StoreConfig {
	if env.GCPolicy != "" {
		cfg.GC.Policy = env.GCPolicy
	}

	if env.Backend != "" {
		cfg.Persistence.Backend = env.Backend
	}

	if cli.GCPolicy != "" {
		cfg.GC.Policy = cli.GCPolicy
	}

	if cli.Backend != "" {
		cfg.Persistence.Backend = cli.Backend
	}

	if cli.Path != "" {
		cfg.Persistence.Path = cli.Path
	}

	return cfg
}
