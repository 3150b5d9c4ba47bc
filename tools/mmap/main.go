// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// The mmap command decodes EFI memory map dumps on a development host.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mmap",
		Short: "EFI memory map inspection",
		Long: `mmap decodes raw EFI memory map buffers, as returned by
EFI_BOOT_SERVICES.GetMemoryMap(), and converts them to E820 tables.

Examples:
  # decode a dump taken on firmware with 48 byte descriptors
  mmap decode memmap.bin --stride 48

  # show the E820 conversion
  mmap decode memmap.bin --stride 48 --e820

  # write a sample dump from the simulated firmware
  mmap sample memmap.bin`,
		SilenceUsage: true,
	}

	root.AddCommand(newDecodeCmd())
	root.AddCommand(newSampleCmd())
	root.AddCommand(newGUIDCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
