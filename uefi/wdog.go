// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"unsafe"
)

const (
	// EFI Boot Services offset for SetWatchdogTimer
	setWatchdogTimer = uint64(unsafe.Offsetof(bootServicesTable{}.SetWatchdogTimer))
	watchdogCode     = 0xba3e5e7a1
)

// SetWatchdogTimer calls EFI_BOOT_SERVICES.SetWatchdogTimer(), a zero
// timeout disables the watchdog.
func (s *BootServices) SetWatchdogTimer(sec int) (err error) {
	status := s.platform.Call(s.base+setWatchdogTimer,
		uint64(sec),
		watchdogCode,
		0,
		0,
	)

	return parseStatus(status)
}
