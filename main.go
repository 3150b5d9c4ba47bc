// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

package main

import (
	"github.com/usbarmory/efi-loader/cmd"
	"github.com/usbarmory/efi-loader/console"
	"github.com/usbarmory/efi-loader/loader"
	"github.com/usbarmory/efi-loader/uefi"
	"github.com/usbarmory/efi-loader/uefi/x64"
)

func main() {
	out := console.Init(x64.UEFI.Console)
	l := loader.New(x64.UEFI, out)

	if err := l.Boot(); err != nil {
		l.Fatal(err)
	}

	if l.Config.Shell && x64.UEFI.Input != nil {
		cmd.Loader = l
		cmd.StartTerminal(&console.Terminal{
			Out: out,
			In:  x64.UEFI.Input,
		})
	}

	if l.Config.Exit {
		l.Log.Info().Msg("returning to firmware")

		if err := x64.UEFI.Boot.Exit(uefi.EFI_SUCCESS); err != nil {
			l.Log.Warn().Err(err).Msg("could not exit")
		}
	}

	l.Log.Info().Msg("boot flow complete, halting")
	l.Halt()
}
