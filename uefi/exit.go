// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"unsafe"
)

// EFI Boot Services offset for Exit
const exit = uint64(unsafe.Offsetof(bootServicesTable{}.Exit))

// Exit calls EFI_BOOT_SERVICES.Exit() to return control to the firmware
// with the argument exit code, on success it does not return.
func (s *BootServices) Exit(code Status) (err error) {
	status := s.platform.Call(s.base+exit,
		s.imageHandle,
		uint64(code),
		0,
		0,
	)

	return parseStatus(status)
}
