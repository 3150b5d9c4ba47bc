// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"

	"github.com/usbarmory/efi-loader/loader"
	"github.com/usbarmory/efi-loader/shell"
	"github.com/usbarmory/efi-loader/uefi"
)

var errNotBooted = errors.New("UEFI services not available")

func init() {
	shell.Add(shell.Cmd{
		Name: "uefi",
		Help: "UEFI information",
		Fn:   uefiCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "protocol",
		Args:    1,
		Pattern: regexp.MustCompile(`^protocol ([[:xdigit:]]{8}-[[:xdigit:]]{4}-[[:xdigit:]]{4}-[[:xdigit:]]{4}-[[:xdigit:]]{12})$`),
		Syntax:  "<registry format GUID>",
		Help:    "EFI_BOOT_SERVICES.LocateProtocol()",
		Fn:      locateCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "memmap",
		Args:    1,
		Pattern: regexp.MustCompile(`^memmap(?: (e820))?$`),
		Syntax:  "(e820)?",
		Help:    "EFI_BOOT_SERVICES.GetMemoryMap()",
		Fn:      memmapCmd,
	})

	shell.Add(shell.Cmd{
		Name: "clear",
		Help: "EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.ClearScreen()",
		Fn:   clearCmd,
	})
}

func services() (*uefi.Services, error) {
	if Loader == nil || Loader.Services == nil {
		return nil, errNotBooted
	}

	return Loader.Services, nil
}

func uefiCmd(_ *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer

	s, err := services()

	if err != nil {
		return
	}

	t := s.SystemTable
	vendor, err := s.FirmwareVendor()

	if err != nil {
		return
	}

	fmt.Fprintf(&buf, "Firmware Vendor ....: %s\n", vendor)
	fmt.Fprintf(&buf, "Firmware Revision ..: %#x\n", t.FirmwareRevision)
	fmt.Fprintf(&buf, "UEFI Revision ......: %d.%d\n", t.Header.Revision>>16, t.Header.Revision&0xffff)
	fmt.Fprintf(&buf, "System Table .......: %#x\n", s.Address())
	fmt.Fprintf(&buf, "Image Handle .......: %#x\n", s.ImageHandle())
	fmt.Fprintf(&buf, "Runtime Services ...: %#x\n", t.RuntimeServices)
	fmt.Fprintf(&buf, "Boot Services ......: %#x\n", t.BootServices)
	fmt.Fprintf(&buf, "Console Output .....: %#x\n", t.ConOut)
	fmt.Fprintf(&buf, "Console Input ......: %#x\n", t.ConIn)
	fmt.Fprintf(&buf, "Configuration Tables: %#x", t.ConfigurationTable)

	if c, err := s.ConfigurationTables(); err == nil {
		for _, t := range c {
			fmt.Fprintf(&buf, "\n  %s (%#x)", t.Name(), t.VendorTable)
		}
	}

	return buf.String(), nil
}

func locateCmd(_ *shell.Interface, arg []string) (res string, err error) {
	s, err := services()

	if err != nil {
		return
	}

	addr, err := s.Boot.LocateProtocolString(arg[0])

	return fmt.Sprintf("%s: %#08x", arg[0], addr), err
}

func memmapCmd(_ *shell.Interface, arg []string) (res string, err error) {
	var buf bytes.Buffer
	var memoryMap *uefi.MemoryMap

	s, err := services()

	if err != nil {
		return
	}

	if memoryMap, err = s.Boot.MemoryMap(0); err != nil {
		return
	}

	if arg[0] == "e820" {
		err = loader.WriteE820(&buf, memoryMap.Descriptors)
	} else {
		err = loader.WriteMemoryMap(&buf, memoryMap.Descriptors)
	}

	return buf.String(), err
}

func clearCmd(_ *shell.Interface, _ []string) (res string, err error) {
	s, err := services()

	if err != nil {
		return
	}

	return "", s.Console.ClearScreen()
}
