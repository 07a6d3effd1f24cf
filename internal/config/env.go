package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfigPath = "FIREDOC_CONFIG"
	EnvGCPolicy   = "FIREDOC_GC_POLICY"
	EnvBackend    = "FIREDOC_PERSISTENCE_BACKEND"
)

// EnvOverrides holds values derived from environment variables. These are
// resolved by ReadEnvOverrides and applied by the four-layer chain in
// ApplyOverrides; they never mutate StoreConfig directly.
type EnvOverrides struct {
	ConfigPath string // FIREDOC_CONFIG: override config file path
	GCPolicy   string // FIREDOC_GC_POLICY: "eager" or "lru"
	Backend    string // FIREDOC_PERSISTENCE_BACKEND: "sqlite" or "memory"
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify StoreConfig; callers apply the relevant
// fields through ApplyOverrides.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfigPath),
		GCPolicy:   os.Getenv(EnvGCPolicy),
		Backend:    os.Getenv(EnvBackend),
	}
}
