// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/usbarmory/efi-loader/loader"
	"github.com/usbarmory/efi-loader/uefi"
	"github.com/usbarmory/efi-loader/uefi/uefitest"
)

func newDecodeCmd() *cobra.Command {
	var stride int
	var e820 bool

	cmd := &cobra.Command{
		Use:   "decode <dump>",
		Short: "decode a memory map dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			buf, err := os.ReadFile(args[0])

			if err != nil {
				return
			}

			it, err := uefi.NewMemoryMapIterator(buf, len(buf), stride)

			if err != nil {
				return
			}

			var descriptors []*uefi.MemoryDescriptor

			for d := range it.All() {
				descriptors = append(descriptors, d)
			}

			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%d descriptors, %s available\n\n",
				len(descriptors), humanize.IBytes(loader.Available(descriptors)))

			if e820 {
				return loader.WriteE820(out, descriptors)
			}

			return loader.WriteMemoryMap(out, descriptors)
		},
	}

	cmd.Flags().IntVarP(&stride, "stride", "s", uefitest.DefaultDescriptorSize, "descriptor size in bytes")
	cmd.Flags().BoolVar(&e820, "e820", false, "show E820 conversion")

	return cmd
}

func newSampleCmd() *cobra.Command {
	var stride int

	cmd := &cobra.Command{
		Use:   "sample <dump>",
		Short: "write a memory map dump from the simulated firmware",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			m := uefitest.NewMachine()
			m.DescriptorSize = stride

			s := &uefi.Services{Platform: m}

			if err = s.Init(m.ImageHandle, m.SystemTable); err != nil {
				return
			}

			buf := make([]byte, len(m.Descriptors)*stride)

			if _, _, err = s.Boot.GetMemoryMap(buf); err != nil {
				return
			}

			return os.WriteFile(args[0], buf, 0600)
		},
	}

	cmd.Flags().IntVarP(&stride, "stride", "s", uefitest.DefaultDescriptorSize, "descriptor size in bytes")

	return cmd
}
