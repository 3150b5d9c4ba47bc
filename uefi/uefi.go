// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package uefi implements a minimal binding to the Unified Extensible
// Firmware Interface (UEFI) following the specifications at:
//
//	https://uefi.org/specs/UEFI/2.10/
//
// Firmware owned tables are never dereferenced in place, each structure is
// copied through a [Platform] and validated once, at the point where its raw
// address is first received. Firmware services are invoked through the same
// [Platform], which on real hardware is provided by package x64 under
// `GOOS=tamago` as supported by the TamaGo framework for bare metal Go, see
// https://github.com/usbarmory/tamago.
package uefi

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unsafe"
)

// EFI Table Header Signature
const signature = 0x5453595320494249 // TSYS IBI

// maxVendorLength is the maximum firmware vendor string length in UCS-2
// units, terminator excluded.
const maxVendorLength = 256

// Platform represents the boundary between Go and the firmware: service
// invocation through the UEFI calling convention and read access to
// firmware owned memory.
type Platform interface {
	// Call invokes the firmware function whose pointer is stored at
	// address fn, passing args following the UEFI calling convention.
	Call(fn uint64, args ...uint64) (status uint64)

	// Read copies len(buf) bytes of firmware memory at addr into buf.
	Read(addr uint64, buf []byte) error
}

// This function helps preparing Platform.Call arguments, allowing a single
// call for all EFI services.
//
// Obtaining a pointer in this fashion is typically unsafe, however as
// arguments are prepared right before invoking the firmware it is considered
// safe as it is identical as having *uint64 as service prototype. All
// pointers passed here escape to the heap, which is never moved.
func ptrval(ptr any) uint64 {
	var p unsafe.Pointer

	switch v := ptr.(type) {
	case *uint64:
		p = unsafe.Pointer(v)
	case *uint32:
		p = unsafe.Pointer(v)
	case *uint16:
		p = unsafe.Pointer(v)
	case *byte:
		p = unsafe.Pointer(v)
	case *GUID:
		p = unsafe.Pointer(v)
	case *InputKey:
		p = unsafe.Pointer(v)
	default:
		panic("internal error, invalid ptrval")
	}

	return uint64(uintptr(p))
}

// TableHeader represents the data structure that precedes all of the standard
// EFI table types.
type TableHeader struct {
	Signature  uint64
	Revision   uint32
	HeaderSize uint32
	CRC32      uint32
	Reserved   uint32
}

// SystemTable represents the EFI System Table, containing pointers to the
// runtime and boot services tables.
type SystemTable struct {
	Header               TableHeader
	FirmwareVendor       uint64
	FirmwareRevision     uint32
	_                    uint32
	ConsoleInHandle      uint64
	ConIn                uint64
	ConsoleOutHandle     uint64
	ConOut               uint64
	StandardErrorHandle  uint64
	StdErr               uint64
	RuntimeServices      uint64
	BootServices         uint64
	NumberOfTableEntries uint64
	ConfigurationTable   uint64
}

// Services represents the UEFI services instance.
type Services struct {
	// Platform is the firmware boundary, when nil the native platform
	// registered with [SetNativePlatform] is used.
	Platform Platform

	// EFI System Table instance
	SystemTable *SystemTable

	// UEFI services
	Boot    *BootServices
	Console *Console
	Input   *Input

	imageHandle uint64
	systemTable uint64
}

var native Platform

// SetNativePlatform registers the platform used by [Services.Init] when
// none is set.
func SetNativePlatform(p Platform) {
	native = p
}

// Init initializes an UEFI services instance using the argument pointers, the
// System Table and the tables it references are validated here and only
// here.
func (s *Services) Init(imageHandle uint64, systemTable uint64) (err error) {
	if s.Platform == nil {
		s.Platform = native
	}

	if s.Platform == nil {
		return errors.New("no firmware platform available")
	}

	s.imageHandle = imageHandle
	s.systemTable = systemTable
	s.SystemTable = &SystemTable{}

	if err = decode(s.Platform, s.SystemTable, systemTable, systemTableSize); err != nil {
		return fmt.Errorf("invalid EFI System Table, %w", err)
	}

	if s.SystemTable.Header.Signature != signature {
		return errors.New("EFI System Table pointer is invalid")
	}

	if s.Boot, err = newBootServices(s.Platform, s.SystemTable.BootServices, imageHandle); err != nil {
		return
	}

	s.Console = &Console{}

	if err = s.Console.bind(s.Platform, s.SystemTable.ConOut); err != nil {
		return fmt.Errorf("invalid console output, %w", err)
	}

	// console input is optional, headless firmware might not provide it
	if s.SystemTable.ConIn != 0 {
		s.Input = &Input{}

		if err = s.Input.bind(s.Platform, s.SystemTable.ConIn); err != nil {
			return fmt.Errorf("invalid console input, %w", err)
		}
	}

	return
}

// ImageHandle returns the UEFI image handle pointer.
func (s *Services) ImageHandle() uint64 {
	return s.imageHandle
}

// Address returns the EFI System Table pointer.
func (s *Services) Address() uint64 {
	return s.systemTable
}

// FirmwareVendor returns the firmware vendor string.
func (s *Services) FirmwareVendor() (vendor string, err error) {
	if s.SystemTable == nil || s.SystemTable.FirmwareVendor == 0 {
		return "", errors.New("EFI System Table is invalid")
	}

	var buf []byte
	var c [2]byte

	addr := s.SystemTable.FirmwareVendor

	// the string length is unknown, read one unit at a time up to the
	// terminator
	for range maxVendorLength {
		if err = s.Platform.Read(addr, c[:]); err != nil {
			return "", fmt.Errorf("could not read firmware vendor, %w", err)
		}

		if c[0] == 0 && c[1] == 0 {
			return fromUCS2(buf), nil
		}

		buf = append(buf, c[:]...)
		addr += 2
	}

	return "", fmt.Errorf("firmware vendor exceeds %d characters", maxVendorLength)
}

// fromUCS2 decodes a null terminated little-endian UCS-2 string.
func fromUCS2(buf []byte) string {
	var s []uint16

	for i := 0; i+1 < len(buf); i += 2 {
		c := uint16(buf[i]) | uint16(buf[i+1])<<8

		if c == 0 {
			break
		}

		s = append(s, c)
	}

	return string(utf16.Decode(s))
}
