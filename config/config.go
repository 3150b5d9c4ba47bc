// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package config implements the loader configuration, parsed in TOML format
// from the boot volume.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// Path is the configuration file location on the boot volume.
const Path = "loader.toml"

// maxName is the longest file name accepted by the loader, in UCS-2 units.
const maxName = 31

// Demo represents the file written at boot to exercise the file system.
type Demo struct {
	// Name is the file name, created in the volume root.
	Name string `toml:"name"`
	// Text is written to the file.
	Text string `toml:"text"`
}

// Config represents the loader configuration.
type Config struct {
	// Banner is printed on the console at boot.
	Banner string `toml:"banner"`
	// LogFile, when not empty, receives a copy of the loader log.
	LogFile string `toml:"log_file"`
	// LogLevel is the minimum level of logged events.
	LogLevel string `toml:"log_level"`
	// MemoryMapFile, when not empty, receives the memory map report.
	MemoryMapFile string `toml:"memory_map_file"`
	// MemoryMapSize is the initial memory map buffer size in bytes.
	MemoryMapSize int `toml:"memory_map_size"`
	// Shell enables the diagnostic shell after boot.
	Shell bool `toml:"shell"`
	// Exit returns control to the firmware once the boot flow completes,
	// instead of halting.
	Exit bool `toml:"exit"`

	Demo Demo `toml:"demo"`
}

// Default returns the configuration in use when no file is present.
func Default() *Config {
	return &Config{
		Banner:        "Hello",
		LogLevel:      zerolog.LevelInfoValue,
		MemoryMapFile: "memmap.txt",
		MemoryMapSize: 4096,
		Demo: Demo{
			Name: "test",
			Text: "hoge",
		},
	}
}

// Load parses a TOML configuration, keys not present in r retain their
// default value.
func Load(r io.Reader) (c *Config, err error) {
	c = Default()

	md, err := toml.NewDecoder(r).Decode(c)

	if err != nil {
		return nil, fmt.Errorf("could not parse configuration, %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		var keys []string

		for _, k := range undecoded {
			keys = append(keys, k.String())
		}

		return nil, fmt.Errorf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}

	if err = c.Validate(); err != nil {
		return nil, err
	}

	return
}

func validateName(field string, name string, optional bool) error {
	if name == "" {
		if optional {
			return nil
		}

		return fmt.Errorf("%s cannot be empty", field)
	}

	if strings.ContainsAny(name, `\/`) {
		return fmt.Errorf("%s must be a file in the volume root", field)
	}

	for _, r := range name {
		if r > 0xffff {
			return fmt.Errorf("%s contains unsupported character %U", field, r)
		}
	}

	if n := len(utf16.Encode([]rune(name))); n > maxName {
		return fmt.Errorf("%s exceeds %d characters", field, maxName)
	}

	return nil
}

func validateText(field string, s string) error {
	for _, r := range s {
		if r > 0xffff {
			return fmt.Errorf("%s contains unsupported character %U", field, r)
		}
	}

	return nil
}

// Validate checks that the configuration can be honoured by the loader,
// file names must fit the firmware name buffer and text must be
// representable on the console.
func (c *Config) Validate() (err error) {
	var errs []error

	errs = append(errs, validateName("log_file", c.LogFile, true))
	errs = append(errs, validateName("memory_map_file", c.MemoryMapFile, true))
	errs = append(errs, validateName("demo.name", c.Demo.Name, false))
	errs = append(errs, validateText("banner", c.Banner))

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log_level, %w", err))
	}

	if c.MemoryMapSize < 0 {
		errs = append(errs, fmt.Errorf("invalid memory_map_size (%d)", c.MemoryMapSize))
	}

	return errors.Join(errs...)
}

// Level returns the configured log level.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)

	if err != nil {
		return zerolog.InfoLevel
	}

	return level
}
