// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package loader

import (
	"errors"
	"strings"
	"testing"

	"github.com/usbarmory/efi-loader/console"
	"github.com/usbarmory/efi-loader/uefi"
	"github.com/usbarmory/efi-loader/uefi/uefitest"
)

func newLoader(t *testing.T) (*uefitest.Machine, *Loader) {
	t.Helper()

	m := uefitest.NewMachine()
	s := &uefi.Services{Platform: m}

	if err := s.Init(m.ImageHandle, m.SystemTable); err != nil {
		t.Fatal(err)
	}

	return m, New(s, console.NewWriter(s.Console))
}

func TestBoot(t *testing.T) {
	m, l := newLoader(t)

	if err := l.Boot(); err != nil {
		t.Fatal(err)
	}

	if m.ClearScreens != 1 {
		t.Fatalf("unexpected ClearScreen calls %d", m.ClearScreens)
	}

	if m.Watchdog == 0 {
		t.Fatal("watchdog disabled without shell")
	}

	demo, ok := m.Files["test"]

	if !ok {
		t.Fatal("demo file not created")
	}

	if string(demo.Data) != "hoge" || demo.Flushed != 1 {
		t.Fatalf("unexpected demo file %q (flushed %d)", demo.Data, demo.Flushed)
	}

	out := m.Text()

	for _, s := range []string{
		"Hello\r\n",
		"write test: success (4 bytes)\r\n",
		"flush test: success\r\n",
		"memory map",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output is missing %q:\n%s", s, out)
		}
	}

	if len(l.MemoryMap.Descriptors) != len(m.Descriptors) {
		t.Fatalf("unexpected memory map %+v", l.MemoryMap)
	}

	report, ok := m.Files["memmap.txt"]

	if !ok || !report.Closed || report.Flushed != 1 {
		t.Fatal("memory map report not saved")
	}

	if !strings.Contains(string(report.Data), "ACPIReclaim") {
		t.Fatalf("unexpected report:\n%s", report.Data)
	}
}

func TestBootConfig(t *testing.T) {
	m, l := newLoader(t)

	m.Files["loader.toml"] = &uefitest.File{
		Name: "loader.toml",
		Data: []byte(`
banner = "efi-loader"
log_file = "loader.log"
memory_map_file = ""
shell = true

[demo]
name = "demo.txt"
text = "Hello, world!"
`),
	}

	if err := l.Boot(); err != nil {
		t.Fatal(err)
	}

	if m.Watchdog != 0 {
		t.Fatal("watchdog not disabled")
	}

	if !m.Files["loader.toml"].Closed {
		t.Fatal("configuration file not closed")
	}

	if _, ok := m.Files["memmap.txt"]; ok {
		t.Fatal("unexpected memory map report")
	}

	if string(m.Files["demo.txt"].Data) != "Hello, world!" {
		t.Fatalf("unexpected demo file %q", m.Files["demo.txt"].Data)
	}

	log, ok := m.Files["loader.log"]

	if !ok || log.Flushed == 0 {
		t.Fatal("log file not written")
	}

	if !strings.Contains(string(log.Data), "memory map") {
		t.Fatalf("unexpected log:\n%s", log.Data)
	}

	if !strings.Contains(m.Text(), "efi-loader\r\n") {
		t.Fatalf("banner not printed:\n%s", m.Text())
	}
}

func TestBootInvalidConfig(t *testing.T) {
	m, l := newLoader(t)

	m.Files["loader.toml"] = &uefitest.File{
		Name: "loader.toml",
		Data: []byte(`banner = `),
	}

	if err := l.Boot(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(m.Text(), "invalid configuration") {
		t.Fatalf("missing warning:\n%s", m.Text())
	}

	if _, ok := m.Files["test"]; !ok {
		t.Fatal("defaults not applied")
	}
}

func TestBootWriteStatus(t *testing.T) {
	m, l := newLoader(t)
	m.WriteStatus = uefi.EFI_VOLUME_FULL

	if err := l.Boot(); err != nil {
		t.Fatal(err)
	}

	out := m.Text()

	if !strings.Contains(out, "write test: volume full (0 bytes)") {
		t.Fatalf("missing write status:\n%s", out)
	}

	if !strings.Contains(out, "could not save memory map") {
		t.Fatalf("missing report warning:\n%s", out)
	}
}

func TestBootMissingFileSystem(t *testing.T) {
	m, l := newLoader(t)
	delete(m.Protocols, uefi.SimpleFileSystemProtocolGUID)

	err := l.Boot()

	if !errors.Is(err, uefi.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var halted bool

	l.Halt = func() {
		halted = true
	}

	l.Fatal(err)

	if !halted {
		t.Fatal("loader not halted")
	}

	if !strings.Contains(m.Text(), "fatal error, could not locate protocol") {
		t.Fatalf("missing diagnostic:\n%s", m.Text())
	}
}

func TestFatalLogFlush(t *testing.T) {
	m, l := newLoader(t)

	m.Files["loader.toml"] = &uefitest.File{
		Name: "loader.toml",
		Data: []byte(`log_file = "loader.log"`),
	}

	if err := l.Boot(); err != nil {
		t.Fatal(err)
	}

	halted := false
	l.Halt = func() { halted = true }
	m.FlushStatus = uefi.EFI_WRITE_PROTECTED

	l.Fatal(errors.New("no kernel"))

	if !halted {
		t.Fatal("loader not halted")
	}

	if !strings.Contains(m.Text(), "fatal error, no kernel") {
		t.Fatalf("fatal error not printed:\n%s", m.Text())
	}

	if !strings.Contains(m.Text(), "could not flush log file") {
		t.Fatalf("flush failure not reported:\n%s", m.Text())
	}
}
