// Package config provides configuration helpers and TOML parsing.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/ruletype/internal/tuning"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Reveal RevealConfig       `toml:"reveal"`
	Log    LogConfig          `toml:"log"`
	Tuning map[string]float64 `toml:"tuning"`
}

// RevealConfig maps session-related settings.
type RevealConfig struct {
	Rules     *string `toml:"rules"`
	StartRule *int    `toml:"start-rule"`
	Resume    *bool   `toml:"resume"`
	Seed      *int64  `toml:"seed"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	Path  *string `toml:"path"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := tuning.Validate(cfg.Tuning); err != nil {
		return FileConfig{}, fmt.Errorf("invalid [tuning]: %w", err)
	}
	return cfg, nil
}

type tuningFile struct {
	Tuning map[string]float64 `toml:"tuning"`
}

// EncodeTuning renders values as a TOML [tuning] table with sorted keys.
func EncodeTuning(values map[string]float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(tuningFile{Tuning: values}); err != nil {
		return nil, fmt.Errorf("failed to encode tuning: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTuning reads the [tuning] table of a TOML document.
func DecodeTuning(path string) (map[string]float64, error) {
	var file tuningFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to decode tuning: %w", err)
	}
	if err := tuning.Validate(file.Tuning); err != nil {
		return nil, err
	}
	return file.Tuning, nil
}

// WriteTuning writes values to path atomically.
func WriteTuning(path string, values map[string]float64) error {
	data, err := EncodeTuning(values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create tuning dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "tuning-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp tuning file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write tuning: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close tuning file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write tuning: %w", err)
	}
	return nil
}

// SortedTuningKeys returns the keys of values in sorted order.
func SortedTuningKeys(values map[string]float64) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
