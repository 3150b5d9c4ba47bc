// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package loader implements the pre-OS boot flow, run while UEFI Boot
// Services are available.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/usbarmory/efi-loader/config"
	"github.com/usbarmory/efi-loader/console"
	"github.com/usbarmory/efi-loader/uefi"
)

// Loader represents the boot flow state.
type Loader struct {
	// Services represents the initialized UEFI services.
	Services *uefi.Services
	// Console represents the console output writer.
	Console *console.Writer
	// Config is the configuration in use, populated by Boot.
	Config *config.Config
	// Log is the loader logger, populated by Boot.
	Log zerolog.Logger
	// Root is the boot volume root directory, populated by Boot.
	Root *uefi.File
	// MemoryMap is the memory map acquired at boot.
	MemoryMap *uefi.MemoryMap

	// Started is the loader start time.
	Started time.Time
	// Halt stops execution on fatal errors, it must not return.
	Halt func()

	logFile *uefi.File
}

// New returns a loader over initialized UEFI services, with output on the
// argument console writer.
func New(s *uefi.Services, out *console.Writer) *Loader {
	return &Loader{
		Services: s,
		Console:  out,
		Config:   config.Default(),
		Log:      NewLogger(out, zerolog.InfoLevel),
		Started:  time.Now(),
		Halt:     halt,
	}
}

func halt() {
	for {
		runtime.Gosched()
	}
}

// Fatal reports an unrecoverable error on the console and halts.
func (l *Loader) Fatal(err error) {
	l.Log.Error().Err(err).Msg("fatal")
	fmt.Fprintf(l.Console, "fatal error, %v\n", err)

	if l.logFile != nil {
		if err := l.logFile.Flush(); err != nil {
			l.Log.Warn().Err(err).Msg("could not flush log file")
		}
	}

	l.Halt()
}

// Boot runs the boot flow: the console is cleared, the boot volume located
// and opened, the configuration loaded, the memory map acquired and the
// demonstration file written. Errors returned by Boot are fatal.
func (l *Loader) Boot() (err error) {
	if err = l.Services.Console.ClearScreen(); err != nil {
		l.Log.Warn().Err(err).Msg("could not clear screen")
	}

	fs := &uefi.SimpleFileSystem{}

	if err = l.Services.Boot.Locate(fs); err != nil {
		return
	}

	if l.Root, err = fs.OpenVolume(); err != nil {
		return fmt.Errorf("could not open volume, %w", err)
	}

	l.loadConfig()

	fmt.Fprintln(l.Console, l.Config.Banner)

	if vendor, err := l.Services.FirmwareVendor(); err == nil {
		l.Log.Info().Str("vendor", vendor).Uint32("revision", l.Services.SystemTable.FirmwareRevision).Msg("firmware")
	}

	if err = l.memoryMap(); err != nil {
		return
	}

	if l.Config.Shell {
		// the firmware resets the platform after 5 minutes otherwise
		if err := l.Services.Boot.SetWatchdogTimer(0); err != nil {
			l.Log.Warn().Err(err).Msg("could not disable watchdog")
		}
	}

	l.demo()

	if l.logFile != nil {
		if err := l.logFile.Flush(); err != nil {
			l.Log.Warn().Err(err).Msg("could not flush log file")
		}
	}

	return
}

func (l *Loader) loadConfig() {
	f, err := l.Root.Open(config.Path, uefi.Read)

	switch {
	case errors.Is(err, uefi.ErrNotFound):
		l.Log.Debug().Str("path", config.Path).Msg("no configuration, using defaults")
	case err != nil:
		l.Log.Warn().Err(err).Msg("could not open configuration")
	default:
		if c, err := config.Load(f); err != nil {
			l.Log.Warn().Err(err).Msg("invalid configuration, using defaults")
		} else {
			l.Config = c
		}

		f.Close()
	}

	var w io.Writer = l.Console

	if name := l.Config.LogFile; name != "" {
		if f, err = l.Root.Open(name, uefi.CreateReadWrite); err != nil {
			l.Log.Warn().Err(err).Msg("could not open log file")
		} else {
			l.logFile = f
			w = io.MultiWriter(l.Console, f)
		}
	}

	l.Log = NewLogger(w, l.Config.Level())
}

func (l *Loader) memoryMap() (err error) {
	var buf bytes.Buffer

	if l.MemoryMap, err = l.Services.Boot.MemoryMap(l.Config.MemoryMapSize); err != nil {
		return fmt.Errorf("could not get memory map, %w", err)
	}

	l.Log.Info().
		Int("descriptors", len(l.MemoryMap.Descriptors)).
		Uint64("stride", l.MemoryMap.DescriptorSize).
		Str("available", humanize.IBytes(Available(l.MemoryMap.Descriptors))).
		Msg("memory map")

	name := l.Config.MemoryMapFile

	if name == "" {
		return
	}

	if err = WriteMemoryMap(&buf, l.MemoryMap.Descriptors); err != nil {
		return
	}

	if err = l.writeFile(name, buf.Bytes()); err != nil {
		l.Log.Warn().Err(err).Msg("could not save memory map")
	}

	return nil
}

func (l *Loader) writeFile(name string, data []byte) (err error) {
	f, err := l.Root.Open(name, uefi.CreateReadWrite)

	if err != nil {
		return
	}

	defer f.Close()

	if _, err = f.Write(data); err != nil {
		return
	}

	return f.Flush()
}

// demo writes the configured text to a newly created file, reporting the
// raw firmware status of each step on the console.
func (l *Loader) demo() {
	f, err := l.Root.Open(l.Config.Demo.Name, uefi.CreateReadWrite)

	if err != nil {
		fmt.Fprintf(l.Console, "open %s: %v\n", l.Config.Demo.Name, err)
		return
	}

	n, status := f.WriteStatus([]byte(l.Config.Demo.Text))
	fmt.Fprintf(l.Console, "write %s: %s (%d bytes)\n", l.Config.Demo.Name, status, n)

	status = f.FlushStatus()
	fmt.Fprintf(l.Console, "flush %s: %s\n", l.Config.Demo.Name, status)
}
