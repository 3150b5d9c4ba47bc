// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"unsafe"
)

// EFI Boot Services Table Header Signature
const bootServicesSignature = 0x56524553544f4f42 // VRESTOOB

// bootServicesTable represents the EFI Boot Services Table layout, every
// field is an EFI function pointer unless noted otherwise.
type bootServicesTable struct {
	Header TableHeader

	// Task Priority Services
	RaiseTPL   uint64
	RestoreTPL uint64

	// Memory Services
	AllocatePages uint64
	FreePages     uint64
	GetMemoryMap  uint64
	AllocatePool  uint64
	FreePool      uint64

	// Event & Timer Services
	CreateEvent  uint64
	SetTimer     uint64
	WaitForEvent uint64
	SignalEvent  uint64
	CloseEvent   uint64
	CheckEvent   uint64

	// Protocol Handler Services
	InstallProtocolInterface   uint64
	ReinstallProtocolInterface uint64
	UninstallProtocolInterface uint64
	HandleProtocol             uint64
	_                          uint64
	RegisterProtocolNotify     uint64
	LocateHandle               uint64
	LocateDevicePath           uint64
	InstallConfigurationTable  uint64

	// Image Services
	LoadImage        uint64
	StartImage       uint64
	Exit             uint64
	UnloadImage      uint64
	ExitBootServices uint64

	// Miscellaneous Services
	GetNextMonotonicCount uint64
	Stall                 uint64
	SetWatchdogTimer      uint64

	// DriverSupport Services
	ConnectController    uint64
	DisconnectController uint64

	// Open and Close Protocol Services
	OpenProtocol            uint64
	CloseProtocol           uint64
	OpenProtocolInformation uint64

	// Library Services
	ProtocolsPerHandle                  uint64
	LocateHandleBuffer                  uint64
	LocateProtocol                      uint64
	InstallMultipleProtocolInterfaces   uint64
	UninstallMultipleProtocolInterfaces uint64

	// 32-bit CRC Services
	CalculateCrc32 uint64

	// Miscellaneous Services
	CopyMem       uint64
	SetMem        uint64
	CreateEventEx uint64
}

// EFI Boot Services offsets
const (
	getMemoryMap   = uint64(unsafe.Offsetof(bootServicesTable{}.GetMemoryMap))
	handleProtocol = uint64(unsafe.Offsetof(bootServicesTable{}.HandleProtocol))
	locateProtocol = uint64(unsafe.Offsetof(bootServicesTable{}.LocateProtocol))
)

// BootServices represents an EFI Boot Services instance.
type BootServices struct {
	// Header is the validated Boot Services table header.
	Header TableHeader

	platform    Platform
	base        uint64
	imageHandle uint64
}

func newBootServices(p Platform, base uint64, imageHandle uint64) (s *BootServices, err error) {
	t := &bootServicesTable{}

	if err = decode(p, t, base, bootServicesTableSize); err != nil {
		return nil, fmt.Errorf("invalid EFI Boot Services, %w", err)
	}

	if t.Header.Signature != bootServicesSignature {
		return nil, errors.New("EFI Boot Services pointer is invalid")
	}

	if t.Header.HeaderSize < bootServicesTableSize {
		return nil, fmt.Errorf("EFI Boot Services table too small (%d)", t.Header.HeaderSize)
	}

	s = &BootServices{
		Header:      t.Header,
		platform:    p,
		base:        base,
		imageHandle: imageHandle,
	}

	return
}

// Address returns the EFI Boot Services Table pointer.
func (s *BootServices) Address() uint64 {
	return s.base
}
