// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi_test

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/usbarmory/efi-loader/uefi"
	"github.com/usbarmory/efi-loader/uefi/uefitest"
)

func newServices(t *testing.T) (*uefitest.Machine, *uefi.Services) {
	t.Helper()

	m := uefitest.NewMachine()
	s := &uefi.Services{Platform: m}

	if err := s.Init(m.ImageHandle, m.SystemTable); err != nil {
		t.Fatal(err)
	}

	return m, s
}

func TestInit(t *testing.T) {
	m, s := newServices(t)

	if s.Address() != m.SystemTable || s.ImageHandle() != m.ImageHandle {
		t.Fatal("invalid services pointers")
	}

	if s.Boot.Address() != m.BootServices {
		t.Fatalf("unexpected Boot Services address %#x", s.Boot.Address())
	}

	if s.Input == nil {
		t.Fatal("missing console input")
	}

	vendor, err := s.FirmwareVendor()

	if err != nil {
		t.Fatal(err)
	}

	if vendor != "EDK II" {
		t.Fatalf("unexpected vendor %q", vendor)
	}
}

func TestFirmwareVendorLength(t *testing.T) {
	m, s := newServices(t)

	long := "Phoenix Technologies Firmware Vendor Ltd"
	// FirmwareVendor follows the table header
	m.Put(m.SystemTable+24, m.New(utf16.Encode([]rune(long+"\x00"))))

	if err := s.Init(m.ImageHandle, m.SystemTable); err != nil {
		t.Fatal(err)
	}

	vendor, err := s.FirmwareVendor()

	if err != nil {
		t.Fatal(err)
	}

	if vendor != long {
		t.Fatalf("unexpected vendor %q", vendor)
	}

	// unterminated
	m.Put(m.SystemTable+24, m.New(utf16.Encode([]rune(strings.Repeat("A", 300)))))

	if err := s.Init(m.ImageHandle, m.SystemTable); err != nil {
		t.Fatal(err)
	}

	if _, err = s.FirmwareVendor(); err == nil {
		t.Fatal("expected unterminated vendor error")
	}
}

func TestInitInvalidSignature(t *testing.T) {
	m := uefitest.NewMachine()
	m.Put(m.SystemTable, uint64(0xdeadbeef))

	s := &uefi.Services{Platform: m}

	if err := s.Init(m.ImageHandle, m.SystemTable); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestInitInvalidBootServices(t *testing.T) {
	m := uefitest.NewMachine()
	// truncate HeaderSize
	m.Put(m.BootServices+12, uint32(0x100))

	s := &uefi.Services{Platform: m}

	if err := s.Init(m.ImageHandle, m.SystemTable); err == nil {
		t.Fatal("expected invalid Boot Services error")
	}
}

func TestInitNoPlatform(t *testing.T) {
	s := &uefi.Services{}

	if err := s.Init(0, 0); err == nil {
		t.Fatal("expected missing platform error")
	}
}

func TestLocate(t *testing.T) {
	m, s := newServices(t)

	addr, err := s.Boot.LocateProtocol(uefi.SimpleFileSystemProtocolGUID)

	if err != nil {
		t.Fatal(err)
	}

	if addr != m.FileSystem {
		t.Fatalf("unexpected interface %#x", addr)
	}

	if addr, err = s.Boot.LocateProtocolString("964e5b22-6459-11d2-8e39-00a0c969723b"); err != nil || addr != m.FileSystem {
		t.Fatalf("unexpected interface %#x (%v)", addr, err)
	}

	root := &uefi.SimpleFileSystem{}

	if err = s.Boot.Locate(root); err != nil {
		t.Fatal(err)
	}

	if _, err = root.OpenVolume(); err != nil {
		t.Fatal(err)
	}

	// nothing is cached, every lookup reaches the firmware
	if err = s.Boot.Locate(root); err != nil {
		t.Fatal(err)
	}

	if n := m.Count(m.BootServices + 0x140); n != 4 {
		t.Fatalf("unexpected LocateProtocol calls %d", n)
	}
}

func TestLocateNotFound(t *testing.T) {
	m, s := newServices(t)
	delete(m.Protocols, uefi.SimpleFileSystemProtocolGUID)

	err := s.Boot.Locate(&uefi.SimpleFileSystem{})

	if !errors.Is(err, uefi.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLocateInvalidRevision(t *testing.T) {
	m, s := newServices(t)
	m.Put(m.FileSystem, uint64(0x20000))

	if err := s.Boot.Locate(&uefi.SimpleFileSystem{}); err == nil {
		t.Fatal("expected revision error")
	}
}

func TestHandleProtocol(t *testing.T) {
	m, s := newServices(t)

	out := &uefi.Console{}

	if err := s.Boot.Open(m.ImageHandle, out); err != nil {
		t.Fatal(err)
	}

	if err := out.OutputString([]uint16{'o', 'k', 0}); err != nil {
		t.Fatal(err)
	}

	if m.Text() != "ok" {
		t.Fatalf("unexpected output %q", m.Text())
	}

	if _, err := s.Boot.HandleProtocol(0, uefi.SimpleTextOutputProtocolGUID); !errors.Is(err, uefi.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
}

func TestConsole(t *testing.T) {
	m, s := newServices(t)

	if err := s.Console.OutputString([]uint16{'A'}); err == nil {
		t.Fatal("expected unterminated string error")
	}

	if err := s.Console.ClearScreen(); err != nil {
		t.Fatal(err)
	}

	if m.ClearScreens != 1 {
		t.Fatal("ClearScreen not called")
	}

	if _, err := s.Input.ReadKeyStroke(); !errors.Is(err, uefi.ErrNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}

	m.Type("x")

	k, err := s.Input.ReadKeyStroke()

	if err != nil {
		t.Fatal(err)
	}

	if k.UnicodeChar != 'x' {
		t.Fatalf("unexpected key %+v", k)
	}
}

func TestConfigurationTables(t *testing.T) {
	m, s := newServices(t)

	c, err := s.ConfigurationTables()

	if err != nil {
		t.Fatal(err)
	}

	if len(c) != len(m.ConfigurationTables) {
		t.Fatalf("unexpected tables %d", len(c))
	}

	if c[0].Name() != "ACPI 2.0" || c[0].VendorTable != 0x7fe0000 {
		t.Fatalf("unexpected table %s (%#x)", c[0].Name(), c[0].VendorTable)
	}

	smbios, err := s.LocateConfiguration(uefi.SMBIOS3TableGUID)

	if err != nil {
		t.Fatal(err)
	}

	if smbios.VendorTable != 0x7fe8000 {
		t.Fatalf("unexpected table address %#x", smbios.VendorTable)
	}

	if _, err = s.LocateConfiguration(uefi.FileInfoGUID); !errors.Is(err, uefi.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetWatchdogTimer(t *testing.T) {
	m, s := newServices(t)

	if err := s.Boot.SetWatchdogTimer(0); err != nil {
		t.Fatal(err)
	}

	if m.Watchdog != 0 {
		t.Fatal("watchdog not disabled")
	}
}

func TestExit(t *testing.T) {
	m, s := newServices(t)

	if err := s.Boot.Exit(uefi.EFI_ABORTED); err != nil {
		t.Fatal(err)
	}

	if m.ExitCode == nil || *m.ExitCode != uefi.EFI_ABORTED {
		t.Fatal("unexpected exit code")
	}
}
