package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the global application configuration
var Config = Default()

// Default returns the built-in configuration used when no config file is
// present. Library consumers embed it and override per field.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{Port: 16191},
		API:    APIConfig{TimeoutMS: 15000},
		Cache: CacheConfig{
			MaxRecords: 10000,
		},
		Fetch: FetchConfig{
			MaxChunks:          8,
			ChunkSpanMS:        6 * 60 * 60 * 1000,
			PreviewThresholdMS: 24 * 60 * 60 * 1000,
		},
		Replay: ReplayConfig{
			SpeedThresholdKPH: 3,
			MinStopDurationMS: 10 * 60 * 1000,
			DedupWindowsMin:   map[string]int{"rest": 180, "theft": 30},
		},
	}
}

// LoadAppConfig loads and validates the application configuration from config.yml
func LoadAppConfig() error {
	paths := []string{"config.yml", "./config/config.yml"}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}
	v := validator.New()
	if err := v.Struct(cfg.Server); err != nil {
		return err
	}
	if err := v.Struct(cfg.API); err != nil {
		return err
	}
	if err := v.Struct(cfg.Cache); err != nil {
		return err
	}
	if err := v.Struct(cfg.Fetch); err != nil {
		return err
	}
	if err := v.Struct(cfg.Replay); err != nil {
		return err
	}
	Config = cfg
	if Config.Server.Port == 0 {
		Config.Server.Port = 16191
	}
	return nil
}
