// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usbarmory/efi-loader/uefi"
)

func newGUIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guid <registry format GUID>",
		Short: "show the EFI byte encoding of a GUID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			g, err := uefi.ParseGUID(args[0])

			if err != nil {
				return
			}

			d4 := g.Data4()

			fmt.Fprintf(cmd.OutOrStdout(), "%s {%#08x, %#04x, %#04x, {% #02x}}\n% x\n",
				g, g.Data1(), g.Data2(), g.Data3(), d4[:], g[:])

			return
		},
	}
}
