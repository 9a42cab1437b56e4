package config

import "time"

// Default values applied by Load for keys the file leaves unset.
const (
	DefaultAddr         = ":8787"
	DefaultDataDriver   = "memory"
	DefaultSyncDebounce = 120 * time.Millisecond
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// Settings is the resolved application configuration consumed by the
// server and CLI. Zero values mean "not configured"; the wiring layer
// decides what that implies (no provider, in-memory store, and so on).
type Settings struct {
	// Addr is the listen address of the HTTP surface.
	Addr string

	// DataDriver selects the project store backend: "memory", "sqlite"
	// or "postgres".
	DataDriver string

	// DataPath is the sqlite database file path.
	DataPath string

	// DataDSN is the postgres connection string.
	DataDSN string

	// Image/Video collaborator endpoints.
	ImageBaseURL string
	ImageAPIKey  string
	ImageModel   string
	VideoBaseURL string
	VideoAPIKey  string
	VideoModel   string

	// Text collaborator (OpenAI-compatible chat completion API).
	TextBaseURL string
	TextAPIKey  string
	TextModel   string

	// Blob storage for the video pre-step upload.
	StorageEndpoint   string
	StoragePublicBase string

	// SyncDebounce is the write-coalescing window of the persistence
	// sync loop.
	SyncDebounce time.Duration

	// BatchConcurrency caps parallel batch sub-calls. Zero keeps the
	// engine default.
	BatchConcurrency int

	LogLevel  string
	LogFormat string
}

// Load reads the config file at path and resolves it into Settings
// with defaults applied. An empty path yields pure defaults.
func Load(path string) (Settings, error) {
	cfg := New(nil)
	if path != "" {
		loaded, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		cfg = loaded
	}
	return Resolve(cfg), nil
}

// Resolve maps a raw Config onto Settings, applying defaults.
func Resolve(cfg Config) Settings {
	return Settings{
		Addr:       cfg.String("server.addr", DefaultAddr),
		DataDriver: cfg.String("data.driver", DefaultDataDriver),
		DataPath:   cfg.String("data.path", ""),
		DataDSN:    cfg.String("data.dsn", ""),

		ImageBaseURL: cfg.String("providers.image.base_url", ""),
		ImageAPIKey:  cfg.String("providers.image.api_key", ""),
		ImageModel:   cfg.String("providers.image.model", ""),
		VideoBaseURL: cfg.String("providers.video.base_url", ""),
		VideoAPIKey:  cfg.String("providers.video.api_key", ""),
		VideoModel:   cfg.String("providers.video.model", ""),

		TextBaseURL: cfg.String("providers.text.base_url", ""),
		TextAPIKey:  cfg.String("providers.text.api_key", ""),
		TextModel:   cfg.String("providers.text.model", ""),

		StorageEndpoint:   cfg.String("storage.endpoint", ""),
		StoragePublicBase: cfg.String("storage.public_base", ""),

		SyncDebounce:     cfg.Duration("sync.debounce", DefaultSyncDebounce),
		BatchConcurrency: cfg.Int("engine.batch_concurrency", 0),

		LogLevel:  cfg.String("log.level", DefaultLogLevel),
		LogFormat: cfg.String("log.format", DefaultLogFormat),
	}
}
