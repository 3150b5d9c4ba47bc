// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"fmt"
	"unsafe"
)

// EFI Boot Service offsets
const (
	allocatePages = uint64(unsafe.Offsetof(bootServicesTable{}.AllocatePages))
	freePages     = uint64(unsafe.Offsetof(bootServicesTable{}.FreePages))
)

// AllocateType represents an EFI_ALLOCATE_TYPE.
type AllocateType int

// EFI_ALLOCATE_TYPE
const (
	AllocateAnyPages AllocateType = iota
	AllocateMaxAddress
	AllocateAddress
	MaxAllocateType
)

// pages returns the number of pages required to hold size bytes.
func pages(size int) uint64 {
	return (uint64(size) + PageSize - 1) / PageSize
}

// AllocatePages calls EFI_BOOT_SERVICES.AllocatePages(), size is rounded up
// to the page size. The physical address argument is interpreted according
// to the allocation type, the allocated address is returned.
func (s *BootServices) AllocatePages(allocateType AllocateType, memoryType int, size int, physicalAddress uint64) (uint64, error) {
	if allocateType < 0 || allocateType >= MaxAllocateType {
		return 0, fmt.Errorf("invalid allocation type (%d)", allocateType)
	}

	if memoryType < 0 || memoryType >= EfiMaxMemoryType {
		return 0, fmt.Errorf("invalid memory type (%d)", memoryType)
	}

	status := s.platform.Call(s.base+allocatePages,
		uint64(allocateType),
		uint64(memoryType),
		pages(size),
		ptrval(&physicalAddress),
	)

	if err := parseStatus(status); err != nil {
		return 0, err
	}

	return physicalAddress, nil
}

// FreePages calls EFI_BOOT_SERVICES.FreePages().
func (s *BootServices) FreePages(physicalAddress uint64, size int) error {
	status := s.platform.Call(s.base+freePages,
		physicalAddress,
		pages(size),
	)

	return parseStatus(status)
}
