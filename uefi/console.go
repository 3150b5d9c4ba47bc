// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"unsafe"
)

// simpleTextOutputProtocol represents the EFI Simple Text Output Protocol
// Interface Table.
type simpleTextOutputProtocol struct {
	Reset             uint64
	OutputString      uint64
	TestString        uint64
	QueryMode         uint64
	SetMode           uint64
	SetAttribute      uint64
	ClearScreen       uint64
	SetCursorPosition uint64
	EnableCursor      uint64
	Mode              uint64
}

// EFI Simple Text Output Protocol offsets
const (
	outputString = uint64(unsafe.Offsetof(simpleTextOutputProtocol{}.OutputString))
	clearScreen  = uint64(unsafe.Offsetof(simpleTextOutputProtocol{}.ClearScreen))
)

// Console represents an EFI Simple Text Output Protocol instance.
type Console struct {
	platform Platform
	base     uint64
	table    simpleTextOutputProtocol
}

// GUID returns the EFI Simple Text Output Protocol GUID.
func (c *Console) GUID() GUID {
	return SimpleTextOutputProtocolGUID
}

func (c *Console) bind(p Platform, addr uint64) (err error) {
	if err = decode(p, &c.table, addr, simpleTextOutputSize); err != nil {
		return
	}

	if c.table.OutputString == 0 {
		return errors.New("invalid OutputString pointer")
	}

	c.platform = p
	c.base = addr

	return
}

// OutputString calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.OutputString(), the
// argument must be a null terminated UCS-2 string.
func (c *Console) OutputString(s []uint16) error {
	if len(s) == 0 || s[len(s)-1] != 0x00 {
		return errors.New("string is not null terminated")
	}

	status := c.platform.Call(c.base+outputString,
		c.base,
		ptrval(&s[0]),
	)

	return parseStatus(status)
}

// ClearScreen calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.ClearScreen().
func (c *Console) ClearScreen() error {
	status := c.platform.Call(c.base+clearScreen,
		c.base,
	)

	return parseStatus(status)
}
