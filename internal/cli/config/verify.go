package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/jmoanes1/phonebook/internal/storage"
)

// Validate checks cfg and returns every problem found, joined.
func Validate(cfg *CLIConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyStore(&cfg.Store),
		verifyLog(&cfg.Log),
		verifyOutput(cfg.Output),
	)
}

func verifyServer(s *ServerSection) error {
	var errs []error
	u, err := url.Parse(s.URL)
	switch {
	case s.URL == "":
		errs = append(errs, errors.New("server.url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("server.url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("server.url: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("server.url: host is required"))
	}
	if s.Timeout <= 0 {
		errs = append(errs, errors.New("server.timeout must be positive"))
	}
	if s.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if s.Burst < 0 {
		errs = append(errs, errors.New("server.burst must not be negative"))
	}
	if s.CAFile != "" {
		if _, err := os.Stat(s.CAFile); err != nil {
			errs = append(errs, fmt.Errorf("server.ca_file: %w", err))
		}
	}
	return errors.Join(errs...)
}

func verifyStore(s *StoreSection) error {
	var errs []error
	switch s.Engine {
	case storage.EngineBadger:
		if s.Dir == "" {
			errs = append(errs, errors.New("store.dir is required for the badger engine"))
		}
	case storage.EngineMemory:
	default:
		errs = append(errs, fmt.Errorf("store.engine must be %s or %s, got %q",
			storage.EngineBadger, storage.EngineMemory, s.Engine))
	}
	if s.Passphrase != "" && len(s.Passphrase) < storage.MinPassphraseLength {
		errs = append(errs, fmt.Errorf("store.passphrase must be at least %d characters", storage.MinPassphraseLength))
	}
	if s.GCInterval < 0 {
		errs = append(errs, errors.New("store.gc_interval must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyLog(l *LogSection) error {
	var errs []error
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level))
	}
	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", l.Format))
	}
	return errors.Join(errs...)
}

func verifyOutput(output string) error {
	switch output {
	case "table", "json", "yaml":
		return nil
	}
	return fmt.Errorf("output must be table, json or yaml, got %q", output)
}
