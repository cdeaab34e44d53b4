package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/cgast/contr/internal/config"
)

const usage = `Usage: contr <command> [args...]

Commands:
  demo [--inspector]            run a sample contract in sync and async mode
  init                          write a default .contr/config.yaml
  validate [config.yaml]        check a config file
  list                          list stored samples
  read <path>                   print a stored sample
  read <contract> <period-id>   print a stored sample by its components
  inspect [--inspector-port=N]  serve the inspector over stored samples
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: loading config: %v\n", err)
	}
	setupLogging(cfg)

	var run func(config.Config) error
	switch os.Args[1] {
	case "demo":
		run = handleDemo
	case "init":
		run = func(config.Config) error { return handleInit() }
	case "validate":
		run = func(config.Config) error { return handleValidate() }
	case "list":
		run = handleList
	case "read":
		run = handleRead
	case "inspect":
		run = handleInspect
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging installs a tint handler for the tool's own messages.
// Violation records are configured separately through cfg.Logger.
func setupLogging(cfg config.Config) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	))
}

func configPath() string {
	if p := os.Getenv("CONTR_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(".contr", "config.yaml")
}

// detectInspectorPort parses --inspector and --inspector-port flags.
// Returns 0 if the inspector is disabled, or the port number to use.
func detectInspectorPort(cfg config.Config, args []string) int {
	const defaultPort = 4200

	for _, arg := range args {
		if arg == "--no-inspector" {
			return 0
		}
	}

	for _, arg := range args {
		if arg == "--inspector" {
			if cfg.Inspector.Port > 0 {
				return cfg.Inspector.Port
			}
			return defaultPort
		}
		if strings.HasPrefix(arg, "--inspector-port=") {
			portStr := strings.TrimPrefix(arg, "--inspector-port=")
			if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
				return port
			}
		}
	}

	if envVal := os.Getenv("CONTR_INSPECTOR"); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
		// "true" or any non-empty value enables on default port.
		return defaultPort
	}

	if cfg.Inspector.Enabled {
		if cfg.Inspector.Port > 0 {
			return cfg.Inspector.Port
		}
		return defaultPort
	}

	return 0
}
