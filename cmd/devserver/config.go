package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	odata "github.com/nlstn/go-odata-routing"
	"gopkg.in/yaml.v3"
)

// Environment variables read when the matching flag is not set.
const (
	envAddr         = "ODATA_ADDR"
	envPrefix       = "ODATA_PREFIX"
	envDriver       = "ODATA_DRIVER"
	envDSN          = "ODATA_DSN"
	envConfigPath   = "CONFIG_PATH"
	envServerTiming = "ODATA_SERVER_TIMING"
	envLogLevel     = "ODATA_LOG_LEVEL"
)

// Config is the dev server configuration. Precedence: flags, then environment,
// then the YAML file, then defaults.
type Config struct {
	Addr         string `yaml:"addr"`
	Prefix       string `yaml:"prefix"`
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	ServerTiming bool   `yaml:"server_timing"`
	LogLevel     string `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Addr:     ":8080",
		Prefix:   odata.DefaultRoutePrefix,
		Driver:   "sqlite",
		LogLevel: "info",
	}
}

// LoadConfig parses args into a Config. getenv is os.Getenv outside tests.
func LoadConfig(args []string, getenv func(string) string, stderr io.Writer) (Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file (env "+envConfigPath+")")
	addr := fs.String("addr", "", "listen address (env "+envAddr+")")
	prefix := fs.String("prefix", "", "route prefix (env "+envPrefix+")")
	driver := fs.String("driver", "", "store driver: sqlite, postgres or mysql (env "+envDriver+")")
	dsn := fs.String("dsn", "", "store connection string (env "+envDSN+")")
	serverTiming := fs.Bool("server-timing", false, "write Server-Timing headers (env "+envServerTiming+")")
	logLevel := fs.String("log-level", "", "debug, info, warn or error (env "+envLogLevel+")")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	path := firstNonEmpty(*configPath, getenv(envConfigPath))
	if path != "" {
		if err := loadYAMLConfig(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Addr = firstNonEmpty(*addr, getenv(envAddr), cfg.Addr)
	cfg.Prefix = firstNonEmpty(*prefix, getenv(envPrefix), cfg.Prefix)
	cfg.Driver = firstNonEmpty(*driver, getenv(envDriver), cfg.Driver)
	cfg.DSN = firstNonEmpty(*dsn, getenv(envDSN), cfg.DSN)
	cfg.LogLevel = firstNonEmpty(*logLevel, getenv(envLogLevel), cfg.LogLevel)
	if *serverTiming {
		cfg.ServerTiming = true
	} else if v := getenv(envServerTiming); v != "" {
		cfg.ServerTiming = v == "1" || strings.EqualFold(v, "true")
	}

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "":
	case "postgres", "mysql":
		if cfg.DSN == "" {
			return Config{}, fmt.Errorf("driver %s requires a DSN", cfg.Driver)
		}
	default:
		return Config{}, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	return cfg, nil
}

func loadYAMLConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
