package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileOptions is the on-disk shape of an options file.
type fileOptions struct {
	CLIPath        string            `toml:"cli_path"`
	CLIURL         string            `toml:"cli_url"`
	Cwd            string            `toml:"cwd"`
	RequestTimeout string            `toml:"request_timeout"`
	Env            map[string]string `toml:"env"`
}

// LoadOptions reads client options from a TOML file.
//
// Only keys present in the file are set on the returned Options, so the
// result can be layered under programmatic options. Example file:
//
//	cli_path = "/usr/local/bin/copilot"
//	request_timeout = "45s"
//
//	[env]
//	COPILOT_LOG_LEVEL = "debug"
func LoadOptions(path string) (*Options, error) {
	var raw fileOptions

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load options file: %w", err)
	}

	opts := &Options{}

	if meta.IsDefined("cli_path") {
		opts.CLIPath = strings.TrimSpace(raw.CLIPath)
	}

	if meta.IsDefined("cli_url") {
		opts.CLIURL = strings.TrimSpace(raw.CLIURL)
	}

	if meta.IsDefined("cwd") {
		opts.Cwd = strings.TrimSpace(raw.Cwd)
	}

	if meta.IsDefined("request_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RequestTimeout))
		if err != nil {
			return nil, fmt.Errorf("parse request_timeout: %w", err)
		}

		opts.RequestTimeout = d
	}

	if meta.IsDefined("env") {
		opts.Env = raw.Env
	}

	return opts, nil
}
