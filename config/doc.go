// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Built-in defaults cover every tunable, so the file only needs to name
// what it overrides.
package config
