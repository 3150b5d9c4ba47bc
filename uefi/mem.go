// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"iter"

	"github.com/u-root/u-root/pkg/boot/bzimage"
)

// Advanced Configuration and Power Interface Specification (ACPI)
// Version 6.0 - Table 15-312 Address Range Types12
const AddressRangePersistentMemory = 7

// PageSize represents the EFI page size in bytes
const PageSize = 4096 // 4 KiB

// maxAttempts bounds [BootServices.MemoryMap] buffer resizing.
const maxAttempts = 8

// EFI_MEMORY_TYPE
const (
	EfiReservedMemoryType = iota
	EfiLoaderCode
	EfiLoaderData
	EfiBootServicesCode
	EfiBootServicesData
	EfiRuntimeServicesCode
	EfiRuntimeServicesData
	EfiConventionalMemory
	EfiUnusableMemory
	EfiACPIReclaimMemory
	EfiACPIMemoryNVS
	EfiMemoryMappedIO
	EfiMemoryMappedIOPortSpace
	EfiPalCode
	EfiPersistentMemory
	EfiUnacceptedMemoryType
	EfiMaxMemoryType
)

var memoryTypes = [EfiMaxMemoryType]string{
	"Reserved",
	"LoaderCode",
	"LoaderData",
	"BootServicesCode",
	"BootServicesData",
	"RuntimeServicesCode",
	"RuntimeServicesData",
	"Conventional",
	"Unusable",
	"ACPIReclaim",
	"ACPIMemoryNVS",
	"MemoryMappedIO",
	"MemoryMappedIOPortSpace",
	"PalCode",
	"Persistent",
	"Unaccepted",
}

// MapKey identifies a specific memory map generation.
type MapKey uint64

// MemoryDescriptor represents an EFI Memory Descriptor, only the fields
// defined by the specification are mapped, firmware strides can be larger.
type MemoryDescriptor struct {
	Type          uint32
	_             uint32
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// PhysicalEnd returns the descriptor physical end address.
func (d *MemoryDescriptor) PhysicalEnd() uint64 {
	return d.PhysicalStart + d.NumberOfPages*PageSize
}

// Size returns the descriptor size.
func (d *MemoryDescriptor) Size() uint64 {
	return d.NumberOfPages * PageSize
}

// TypeName returns the descriptor memory type name.
func (d *MemoryDescriptor) TypeName() string {
	if d.Type < EfiMaxMemoryType {
		return memoryTypes[d.Type]
	}

	return fmt.Sprintf("%#x", d.Type)
}

// E820 converts an EFI Memory Map entry to an x86 E820 one suitable for use
// after exiting EFI Boot Services.
func (d *MemoryDescriptor) E820() bzimage.E820Entry {
	e := bzimage.E820Entry{
		Addr: d.PhysicalStart,
		Size: d.Size(),
	}

	// Unified Extensible Firmware Interface (UEFI) Specification
	// Version 2.10 - Table 7.10: Memory Type Usage after ExitBootServices()
	switch d.Type {
	case EfiLoaderCode, EfiLoaderData, EfiBootServicesCode, EfiBootServicesData, EfiConventionalMemory:
		e.MemType = bzimage.RAM
	case EfiPersistentMemory:
		e.MemType = AddressRangePersistentMemory
	case EfiACPIReclaimMemory:
		e.MemType = bzimage.ACPI
	case EfiACPIMemoryNVS:
		e.MemType = bzimage.NVS
	default:
		e.MemType = bzimage.Reserved
	}

	return e
}

// BufferTooSmallError is returned by [BootServices.GetMemoryMap] when the
// argument buffer cannot hold the current memory map, the caller is expected
// to retry with a buffer of at least Required bytes.
type BufferTooSmallError struct {
	// Required is the memory map size reported by the firmware.
	Required uint64
	// DescriptorSize is the descriptor stride reported by the firmware.
	DescriptorSize uint64
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("memory map buffer too small, %d bytes required", e.Required)
}

// Is allows matching against [ErrBufferTooSmall].
func (e *BufferTooSmallError) Is(target error) bool {
	return target == ErrBufferTooSmall
}

// MemoryMapIterator decodes EFI Memory Descriptors from a memory map buffer,
// it is forward only and cannot be restarted.
type MemoryMapIterator struct {
	// DescriptorVersion is the descriptor version reported by the
	// firmware.
	DescriptorVersion uint32

	buf    []byte
	stride int
	index  int
	len    int
}

// NewMemoryMapIterator returns an iterator over the first size bytes of a
// memory map buffer with descriptors every stride bytes.
func NewMemoryMapIterator(buf []byte, size int, stride int) (it *MemoryMapIterator, err error) {
	if stride < memoryDescriptorSize {
		return nil, fmt.Errorf("invalid descriptor size (%d)", stride)
	}

	if size < 0 || size > len(buf) {
		return nil, fmt.Errorf("invalid memory map size (%d)", size)
	}

	it = &MemoryMapIterator{
		buf:    buf[:size],
		stride: stride,
		len:    size / stride,
	}

	return
}

// Len returns the total number of descriptors.
func (it *MemoryMapIterator) Len() int {
	return it.len
}

// Remaining returns the number of descriptors not yet returned by Next.
func (it *MemoryMapIterator) Remaining() int {
	return it.len - it.index
}

// Next decodes the next descriptor, ok is false once all descriptors have
// been returned.
func (it *MemoryMapIterator) Next() (d *MemoryDescriptor, ok bool) {
	if it.index == it.len {
		return nil, false
	}

	off := it.index * it.stride
	d = &MemoryDescriptor{}

	if err := unmarshalBinary(it.buf[off:off+memoryDescriptorSize], d); err != nil {
		// bounds are validated on construction
		panic(err)
	}

	it.index += 1

	return d, true
}

// All returns a sequence over the remaining descriptors, consuming them.
func (it *MemoryMapIterator) All() iter.Seq[*MemoryDescriptor] {
	return func(yield func(*MemoryDescriptor) bool) {
		for {
			d, ok := it.Next()

			if !ok || !yield(d) {
				return
			}
		}
	}
}

// GetMemoryMap calls EFI_BOOT_SERVICES.GetMemoryMap() over the argument
// buffer. A [*BufferTooSmallError] is returned when buf cannot hold the
// memory map.
func (s *BootServices) GetMemoryMap(buf []byte) (key MapKey, it *MemoryMapIterator, err error) {
	var ptr uint64
	var descriptorSize uint64
	var descriptorVersion uint32

	size := uint64(len(buf))

	if len(buf) > 0 {
		ptr = ptrval(&buf[0])
	}

	status := s.platform.Call(s.base+getMemoryMap,
		ptrval(&size),
		ptr,
		ptrval((*uint64)(&key)),
		ptrval(&descriptorSize),
		ptrval(&descriptorVersion),
	)

	if Status(status) == EFI_BUFFER_TOO_SMALL {
		return 0, nil, &BufferTooSmallError{
			Required:       size,
			DescriptorSize: descriptorSize,
		}
	}

	if err = parseStatus(status); err != nil {
		return
	}

	if it, err = NewMemoryMapIterator(buf, int(size), int(descriptorSize)); err != nil {
		return 0, nil, err
	}

	it.DescriptorVersion = descriptorVersion

	return
}

// MemoryMap represents an EFI Memory Map
type MemoryMap struct {
	Descriptors       []*MemoryDescriptor
	MapKey            MapKey
	MapSize           uint64
	DescriptorSize    uint64
	DescriptorVersion uint32
}

// MemoryMap returns the current EFI Memory Map, starting with a buffer of
// the argument size and growing it as requested by the firmware.
func (s *BootServices) MemoryMap(size int) (m *MemoryMap, err error) {
	var it *MemoryMapIterator
	var tooSmall *BufferTooSmallError

	for range maxAttempts {
		buf := make([]byte, size)
		key, i, err := s.GetMemoryMap(buf)

		if errors.As(err, &tooSmall) {
			// allow for descriptors added by the allocation itself
			slack := 2 * max(tooSmall.DescriptorSize, memoryDescriptorSize)
			size = int(tooSmall.Required + slack)
			continue
		}

		if err != nil {
			return nil, err
		}

		it = i
		m = &MemoryMap{
			MapKey:            key,
			MapSize:           uint64(it.Len() * it.stride),
			DescriptorSize:    uint64(it.stride),
			DescriptorVersion: it.DescriptorVersion,
		}

		break
	}

	if it == nil {
		return nil, fmt.Errorf("memory map still too small after %d attempts", maxAttempts)
	}

	for d := range it.All() {
		m.Descriptors = append(m.Descriptors, d)
	}

	return
}
