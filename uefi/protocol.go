// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"fmt"
)

// Protocol represents a binding to an EFI protocol interface, each
// implementation knows the exact layout of its own Interface Table.
type Protocol interface {
	// GUID returns the protocol identifier.
	GUID() GUID

	// bind attaches the binding to the Interface Table at addr, after
	// validating it.
	bind(p Platform, addr uint64) error
}

// HandleProtocol calls EFI_BOOT_SERVICES.HandleProtocol().
func (s *BootServices) HandleProtocol(handle uint64, guid GUID) (addr uint64, err error) {
	status := s.platform.Call(s.base+handleProtocol,
		handle,
		ptrval(&guid),
		ptrval(&addr),
	)

	if err = parseStatus(status); err == nil && addr == 0 {
		err = ErrNotFound
	}

	return
}

// LocateProtocol calls EFI_BOOT_SERVICES.LocateProtocol().
func (s *BootServices) LocateProtocol(guid GUID) (addr uint64, err error) {
	status := s.platform.Call(s.base+locateProtocol,
		ptrval(&guid),
		0,
		ptrval(&addr),
	)

	if err = parseStatus(status); err == nil && addr == 0 {
		err = ErrNotFound
	}

	return
}

// LocateProtocolString calls EFI_BOOT_SERVICES.LocateProtocol() for a GUID in
// registry format.
func (s *BootServices) LocateProtocolString(g string) (addr uint64, err error) {
	guid, err := ParseGUID(g)

	if err != nil {
		return
	}

	return s.LocateProtocol(guid)
}

// Locate finds the first installed instance of the argument protocol and
// binds it, no state is cached across calls.
func (s *BootServices) Locate(proto Protocol) (err error) {
	addr, err := s.LocateProtocol(proto.GUID())

	if err != nil {
		return fmt.Errorf("could not locate protocol %s, %w", proto.GUID(), err)
	}

	return proto.bind(s.platform, addr)
}

// Open binds the argument protocol as installed on a specific handle.
func (s *BootServices) Open(handle uint64, proto Protocol) (err error) {
	addr, err := s.HandleProtocol(handle, proto.GUID())

	if err != nil {
		return fmt.Errorf("could not open protocol %s, %w", proto.GUID(), err)
	}

	return proto.bind(s.platform, addr)
}
