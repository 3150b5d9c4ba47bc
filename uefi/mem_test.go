// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/u-root/u-root/pkg/boot/bzimage"

	"github.com/usbarmory/efi-loader/uefi"
	"github.com/usbarmory/efi-loader/uefi/uefitest"
)

func encodeMap(t *testing.T, descriptors []uefi.MemoryDescriptor, stride int) []byte {
	t.Helper()

	buf := make([]byte, len(descriptors)*stride)

	for i := range buf {
		buf[i] = 0xff
	}

	for i, d := range descriptors {
		if _, err := binary.Encode(buf[i*stride:], binary.LittleEndian, d); err != nil {
			t.Fatal(err)
		}
	}

	return buf
}

func TestMemoryMapIteratorStride(t *testing.T) {
	m := uefitest.NewMachine()

	for _, stride := range []int{40, 48, 64} {
		buf := encodeMap(t, m.Descriptors, stride)
		it, err := uefi.NewMemoryMapIterator(buf, len(buf), stride)

		if err != nil {
			t.Fatal(err)
		}

		if it.Len() != len(m.Descriptors) {
			t.Fatalf("stride %d: unexpected length %d", stride, it.Len())
		}

		var n int

		for d := range it.All() {
			if *d != m.Descriptors[n] {
				t.Errorf("stride %d: descriptor %d mismatch, %+v != %+v", stride, n, *d, m.Descriptors[n])
			}

			n += 1
		}

		if n != len(m.Descriptors) || it.Remaining() != 0 {
			t.Fatalf("stride %d: yielded %d descriptors", stride, n)
		}

		// forward only
		if _, ok := it.Next(); ok {
			t.Fatalf("stride %d: iterator restarted", stride)
		}
	}
}

func TestMemoryMapIteratorInvalid(t *testing.T) {
	buf := make([]byte, 120)

	if _, err := uefi.NewMemoryMapIterator(buf, len(buf), 24); err == nil {
		t.Fatal("expected descriptor size error")
	}

	if _, err := uefi.NewMemoryMapIterator(buf, len(buf)+1, 40); err == nil {
		t.Fatal("expected memory map size error")
	}

	// trailing partial descriptors are ignored
	it, err := uefi.NewMemoryMapIterator(buf, 100, 40)

	if err != nil {
		t.Fatal(err)
	}

	if it.Len() != 2 {
		t.Fatalf("unexpected length %d", it.Len())
	}
}

func TestGetMemoryMap(t *testing.T) {
	for _, stride := range []int{40, 48, 64} {
		m, s := newServices(t)
		m.DescriptorSize = stride

		buf := make([]byte, 4096)
		key, it, err := s.Boot.GetMemoryMap(buf)

		if err != nil {
			t.Fatal(err)
		}

		if uint64(key) != m.MapKey || it.DescriptorVersion != 1 {
			t.Fatalf("unexpected key %#x or version %d", key, it.DescriptorVersion)
		}

		var got []uefi.MemoryDescriptor

		for {
			d, ok := it.Next()

			if !ok {
				break
			}

			got = append(got, *d)
		}

		if len(got) != len(m.Descriptors) {
			t.Fatalf("stride %d: got %d descriptors", stride, len(got))
		}

		for i := range got {
			if got[i] != m.Descriptors[i] {
				t.Errorf("stride %d: descriptor %d mismatch", stride, i)
			}
		}
	}
}

func TestGetMemoryMapEmptyBuffer(t *testing.T) {
	m, s := newServices(t)

	_, _, err := s.Boot.GetMemoryMap(nil)

	var tooSmall *uefi.BufferTooSmallError

	if !errors.As(err, &tooSmall) {
		t.Fatalf("expected buffer too small, got %v", err)
	}

	if !errors.Is(err, uefi.ErrBufferTooSmall) {
		t.Fatal("error does not match ErrBufferTooSmall")
	}

	if tooSmall.Required == 0 || tooSmall.Required != uint64(len(m.Descriptors)*m.DescriptorSize) {
		t.Fatalf("unexpected required size %d", tooSmall.Required)
	}

	if tooSmall.DescriptorSize != uefitest.DefaultDescriptorSize {
		t.Fatalf("unexpected descriptor size %d", tooSmall.DescriptorSize)
	}
}

func TestGetMemoryMapInvalidStride(t *testing.T) {
	m, s := newServices(t)
	m.DescriptorSize = 32

	if _, _, err := s.Boot.GetMemoryMap(make([]byte, 4096)); err == nil {
		t.Fatal("expected descriptor size error")
	}
}

func TestMemoryMap(t *testing.T) {
	m, s := newServices(t)

	mm, err := s.Boot.MemoryMap(0)

	if err != nil {
		t.Fatal(err)
	}

	if len(mm.Descriptors) != len(m.Descriptors) {
		t.Fatalf("unexpected descriptor count %d", len(mm.Descriptors))
	}

	if mm.DescriptorSize != uefitest.DefaultDescriptorSize || uint64(mm.MapKey) != m.MapKey {
		t.Fatalf("unexpected memory map %+v", mm)
	}

	// initial empty buffer plus one retry
	if n := m.Count(m.BootServices + 0x38); n != 2 {
		t.Fatalf("unexpected GetMemoryMap calls %d", n)
	}
}

func TestMemoryDescriptorE820(t *testing.T) {
	for _, tc := range []struct {
		typ      uint32
		expected bzimage.E820Entry
	}{
		{uefi.EfiConventionalMemory, bzimage.E820Entry{MemType: bzimage.RAM}},
		{uefi.EfiBootServicesData, bzimage.E820Entry{MemType: bzimage.RAM}},
		{uefi.EfiACPIReclaimMemory, bzimage.E820Entry{MemType: bzimage.ACPI}},
		{uefi.EfiACPIMemoryNVS, bzimage.E820Entry{MemType: bzimage.NVS}},
		{uefi.EfiPersistentMemory, bzimage.E820Entry{MemType: uefi.AddressRangePersistentMemory}},
		{uefi.EfiRuntimeServicesCode, bzimage.E820Entry{MemType: bzimage.Reserved}},
		{uefi.EfiMemoryMappedIO, bzimage.E820Entry{MemType: bzimage.Reserved}},
	} {
		d := &uefi.MemoryDescriptor{
			Type:          tc.typ,
			PhysicalStart: 0x100000,
			NumberOfPages: 16,
		}

		e := d.E820()

		if e.MemType != tc.expected.MemType {
			t.Errorf("%s: type %v, expected %v", d.TypeName(), e.MemType, tc.expected.MemType)
		}

		if e.Addr != 0x100000 || e.Size != 16*uefi.PageSize {
			t.Errorf("%s: unexpected range %#x+%#x", d.TypeName(), e.Addr, e.Size)
		}

		if d.PhysicalEnd() != 0x110000 {
			t.Errorf("%s: unexpected end %#x", d.TypeName(), d.PhysicalEnd())
		}
	}
}

func TestAllocatePages(t *testing.T) {
	m, s := newServices(t)

	addr, err := s.Boot.AllocatePages(uefi.AllocateAddress, uefi.EfiLoaderData, 3*uefi.PageSize+1, 0x200000)

	if err != nil {
		t.Fatal(err)
	}

	if addr != 0x200000 || m.Pages[addr] != 4 {
		t.Fatalf("unexpected allocation %#x (%d pages)", addr, m.Pages[addr])
	}

	mm, err := s.Boot.MemoryMap(0)

	if err != nil {
		t.Fatal(err)
	}

	var found bool

	for _, d := range mm.Descriptors {
		if d.Type == uefi.EfiLoaderData && d.PhysicalStart == addr && d.NumberOfPages == 4 {
			found = true
		}
	}

	if !found {
		t.Fatal("allocation missing from memory map")
	}

	if _, err = s.Boot.AllocatePages(uefi.AllocateAddress, uefi.EfiLoaderData, uefi.PageSize, 0xfec00000); !errors.Is(err, uefi.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err = s.Boot.AllocatePages(uefi.MaxAllocateType, uefi.EfiLoaderData, uefi.PageSize, 0); err == nil {
		t.Fatal("expected invalid allocation type error")
	}

	if err = s.Boot.FreePages(addr, 4*uefi.PageSize); err != nil {
		t.Fatal(err)
	}

	if len(m.Pages) != 0 {
		t.Fatal("pages not freed")
	}
}
