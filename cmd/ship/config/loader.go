// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global is the loaded config singleton
	Global ShipConfig

	once sync.Once
)

// Load reads ~/.aleutianship/ship.yaml into Global, creating the file with
// defaults on first run. Safe to call from every command; the work happens once.
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal()
	})
	return err
}

// LoadFrom reads an explicit config path into Global. Backs the --config
// flag; unlike Load, the file must already exist. Shares the once with
// Load, so whichever runs first wins.
func LoadFrom(path string) error {
	var err error
	once.Do(func() {
		err = readConfig(path)
	})
	return err
}

func loadInternal() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not find the user's home directory: %w", err)
	}

	configPath := filepath.Join(home, ".aleutianship", "ship.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf(" First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return err
		}
	}

	return readConfig(configPath)
}

// readConfig unmarshals one YAML file into Global and validates it.
func readConfig(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read the config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &Global); err != nil {
		return fmt.Errorf("failed to unmarshal the config into the Global singleton: %w", err)
	}

	if err := Global.Validate(); err != nil {
		return fmt.Errorf("config at %s failed validation: %w", configPath, err)
	}

	return nil
}

func createDefault(configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}

	defaultConfig := DefaultConfig()
	data, err := yaml.Marshal(&defaultConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal the default config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write the default config: %w", err)
	}

	return nil
}
