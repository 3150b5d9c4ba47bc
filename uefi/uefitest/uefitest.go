// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package uefitest provides a simulated UEFI firmware implementing the
// [uefi.Platform] interface, for use in tests and host tools.
//
// Firmware tables live in a private arena addressed by fake physical
// addresses, function pointers are identifiers dispatched to Go functions.
// Pointers to loader memory received as service arguments are real Go
// pointers and are accessed directly.
package uefitest

import (
	"encoding/binary"
	"fmt"
	"sort"
	"unsafe"

	"github.com/usbarmory/efi-loader/uefi"
)

const (
	arenaBase  = 0x10000000
	serviceTag = 0xf00d000000000000
)

// Service represents a simulated firmware function.
type Service func(args []uint64) uefi.Status

type region struct {
	base uint64
	buf  []byte
}

// Firmware represents a simulated UEFI firmware instance.
type Firmware struct {
	regions  []*region
	next     uint64
	services map[uint64]Service

	// Calls counts service invocations by function pointer.
	Calls map[uint64]int
}

// New returns an empty simulated firmware.
func New() *Firmware {
	return &Firmware{
		next:     arenaBase,
		services: make(map[uint64]Service),
		Calls:    make(map[uint64]int),
	}
}

// Alloc reserves size bytes of firmware memory, 16-byte aligned.
func (fw *Firmware) Alloc(size int) (addr uint64) {
	addr = fw.next
	fw.regions = append(fw.regions, &region{base: addr, buf: make([]byte, size)})
	fw.next += (uint64(size) + 15) &^ 15

	return
}

// Service registers a simulated function and returns its pointer value.
func (fw *Firmware) Service(fn Service) (ptr uint64) {
	ptr = serviceTag | uint64(len(fw.services)+1)
	fw.services[ptr] = fn

	return
}

func (fw *Firmware) find(addr uint64, n int) ([]byte, error) {
	i := sort.Search(len(fw.regions), func(i int) bool {
		return fw.regions[i].base+uint64(len(fw.regions[i].buf)) > addr
	})

	if i == len(fw.regions) || addr < fw.regions[i].base {
		return nil, fmt.Errorf("address %#x is not mapped", addr)
	}

	r := fw.regions[i]
	off := addr - r.base

	if off+uint64(n) > uint64(len(r.buf)) {
		return nil, fmt.Errorf("access %#x+%d crosses region boundary", addr, n)
	}

	return r.buf[off : off+uint64(n)], nil
}

// Read implements [uefi.Platform.Read].
func (fw *Firmware) Read(addr uint64, buf []byte) error {
	b, err := fw.find(addr, len(buf))

	if err != nil {
		return err
	}

	copy(buf, b)

	return nil
}

// Write copies buf into firmware memory at addr.
func (fw *Firmware) Write(addr uint64, buf []byte) error {
	b, err := fw.find(addr, len(buf))

	if err != nil {
		return err
	}

	copy(b, buf)

	return nil
}

// Put encodes data in firmware memory at addr, returning addr.
func (fw *Firmware) Put(addr uint64, data any) uint64 {
	buf, err := binary.Append(nil, binary.LittleEndian, data)

	if err != nil {
		panic(err)
	}

	if err = fw.Write(addr, buf); err != nil {
		panic(err)
	}

	return addr
}

// New allocates firmware memory for data and encodes it there.
func (fw *Firmware) New(data any) uint64 {
	return fw.Put(fw.Alloc(binary.Size(data)), data)
}

// Call implements [uefi.Platform.Call], the function pointer is read from
// firmware memory at address fn.
func (fw *Firmware) Call(fn uint64, args ...uint64) (status uint64) {
	var ptr [8]byte

	if err := fw.Read(fn, ptr[:]); err != nil {
		panic(fmt.Sprintf("invalid function pointer address, %v", err))
	}

	p := binary.LittleEndian.Uint64(ptr[:])
	svc, ok := fw.services[p]

	if !ok {
		panic(fmt.Sprintf("call to unimplemented service %#x at %#x", p, fn))
	}

	fw.Calls[p] += 1

	return uint64(svc(args))
}

// Count returns the number of calls to the function whose pointer is stored
// at address fn.
func (fw *Firmware) Count(fn uint64) int {
	var ptr [8]byte

	if err := fw.Read(fn, ptr[:]); err != nil {
		return 0
	}

	return fw.Calls[binary.LittleEndian.Uint64(ptr[:])]
}

// Uint64 returns a pointer to the loader memory at addr.
func Uint64(addr uint64) *uint64 {
	return (*uint64)(unsafe.Pointer(uintptr(addr)))
}

// Uint32 returns a pointer to the loader memory at addr.
func Uint32(addr uint64) *uint32 {
	return (*uint32)(unsafe.Pointer(uintptr(addr)))
}

// Bytes returns a slice over n bytes of loader memory at addr.
func Bytes(addr uint64, n int) []byte {
	if n == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n)
}

// String returns the null terminated UCS-2 string in loader memory at addr,
// including the terminator.
func String(addr uint64) (s []uint16) {
	p := unsafe.Pointer(uintptr(addr))

	for i := uintptr(0); ; i++ {
		c := *(*uint16)(unsafe.Add(p, 2*i))
		s = append(s, c)

		if c == 0 {
			return
		}
	}
}
