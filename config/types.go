package config

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

// APIConfig contains the remote telemetry API endpoints
type APIConfig struct {
	HistoryURL    string `yaml:"historyURL" validate:"omitempty,url"`
	PreviewURL    string `yaml:"previewURL" validate:"omitempty,url"`
	FuelEventsURL string `yaml:"fuelEventsURL" validate:"omitempty,url"`
	TimeoutMS     int    `yaml:"timeoutMS" validate:"gte=0"`
}

// CacheConfig contains local sample cache configuration
type CacheConfig struct {
	// SnapshotPath is the durable snapshot file for the local store.
	// Empty keeps the cache in memory only.
	SnapshotPath string `yaml:"snapshotPath"`
	// MaxRecords caps a merged fetch result; oldest records beyond the cap
	// are dropped (recency over completeness).
	MaxRecords int `yaml:"maxRecords" validate:"gte=0"`
}

// FetchConfig tunes chunked history retrieval
type FetchConfig struct {
	// MaxChunks bounds parallel chunk fetches per request.
	MaxChunks int `yaml:"maxChunks" validate:"gte=0"`
	// ChunkSpanMS is the target window span per chunk.
	ChunkSpanMS int64 `yaml:"chunkSpanMS" validate:"gte=0"`
	// PreviewThresholdMS: windows wider than this consult the preview
	// endpoint to right-size the chunk count.
	PreviewThresholdMS int64 `yaml:"previewThresholdMS" validate:"gte=0"`
}

// ReplayConfig tunes playback classification and pruning
type ReplayConfig struct {
	// SpeedThresholdKPH separates moving from stopped.
	SpeedThresholdKPH float64 `yaml:"speedThresholdKPH" validate:"gte=0"`
	// MinStopDurationMS: inactive runs spanning at least this long and
	// holding more than two points are collapsed to first and last sample.
	MinStopDurationMS int64 `yaml:"minStopDurationMS" validate:"gte=0"`
	// DedupWindowsMin maps a normalized event type to its minimum
	// recurrence window in minutes. Types not listed are never deduped.
	DedupWindowsMin map[string]int `yaml:"dedupWindowsMin"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server ServerConfig `yaml:"server" validate:"required"`
	API    APIConfig    `yaml:"api"`
	Cache  CacheConfig  `yaml:"cache"`
	Fetch  FetchConfig  `yaml:"fetch"`
	Replay ReplayConfig `yaml:"replay"`
}
