// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package loader

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/usbarmory/efi-loader/uefi"
)

// WriteMemoryMap writes a table of EFI Memory Descriptors to w, followed by
// the total size of each memory type.
func WriteMemoryMap(w io.Writer, descriptors []*uefi.MemoryDescriptor) error {
	var totals [uefi.EfiMaxMemoryType + 1]uint64

	t := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)

	fmt.Fprintf(t, "Type\tStart\tEnd\tPages\tAttributes\tSize\n")

	for _, d := range descriptors {
		fmt.Fprintf(t, "%-19s\t%016x\t%016x\t%016x\t%016x\t%s\n",
			d.TypeName(), d.PhysicalStart, d.PhysicalEnd()-1, d.NumberOfPages, d.Attribute, humanize.IBytes(d.Size()))

		totals[min(d.Type, uefi.EfiMaxMemoryType)] += d.Size()
	}

	if err := t.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)

	for typ, size := range totals {
		if size == 0 {
			continue
		}

		name := "Unknown"

		if typ < uefi.EfiMaxMemoryType {
			name = (&uefi.MemoryDescriptor{Type: uint32(typ)}).TypeName()
		}

		if _, err := fmt.Fprintf(w, "%-23s %s\n", name, humanize.IBytes(size)); err != nil {
			return err
		}
	}

	return nil
}

// WriteE820 writes the x86 E820 conversion of EFI Memory Descriptors to w.
func WriteE820(w io.Writer, descriptors []*uefi.MemoryDescriptor) error {
	t := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)

	fmt.Fprintf(t, "Start\tEnd\tType\tSize\n")

	for _, d := range descriptors {
		e := d.E820()

		fmt.Fprintf(t, "%016x\t%016x\t%d\t%s\n",
			e.Addr, e.Addr+e.Size-1, e.MemType, humanize.IBytes(e.Size))
	}

	return t.Flush()
}

// Available returns the total size of memory usable after exiting Boot
// Services.
func Available(descriptors []*uefi.MemoryDescriptor) (size uint64) {
	for _, d := range descriptors {
		switch d.Type {
		case uefi.EfiLoaderCode, uefi.EfiLoaderData, uefi.EfiBootServicesCode, uefi.EfiBootServicesData, uefi.EfiConventionalMemory:
			size += d.Size()
		}
	}

	return
}
