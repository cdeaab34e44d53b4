package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cgast/contr/internal/config"
)

// handleInit implements `contr init`: it writes the default configuration
// to the config path unless a file is already there.
func handleInit() error {
	path := configPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file %q already exists", path)
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Println("Edit the file to choose loggers, samplers and pools, then run:")
	fmt.Println("  contr validate")
	return nil
}

// handleValidate implements `contr validate [config.yaml]`.
func handleValidate() error {
	path := configPath()
	if len(os.Args) >= 3 {
		path = os.Args[2]
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Config %q is invalid:\n", filepath.Base(path))
		fmt.Printf("  %v\n", err)
		return fmt.Errorf("validation failed")
	}

	fmt.Printf("Config %q is valid.\n", filepath.Base(path))
	return nil
}
