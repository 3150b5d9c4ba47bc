// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"unsafe"
)

// simpleTextInputProtocol represents the EFI Simple Text Input Protocol
// Interface Table.
type simpleTextInputProtocol struct {
	Reset         uint64
	ReadKeyStroke uint64
	WaitForKey    uint64
}

// EFI Simple Text Input Protocol offsets
const readKeyStroke = uint64(unsafe.Offsetof(simpleTextInputProtocol{}.ReadKeyStroke))

// InputKey represents an EFI Input Key descriptor.
type InputKey struct {
	ScanCode    uint16
	UnicodeChar uint16
}

// Input represents an EFI Simple Text Input Protocol instance.
type Input struct {
	platform Platform
	base     uint64
	table    simpleTextInputProtocol
}

// GUID returns the EFI Simple Text Input Protocol GUID.
func (in *Input) GUID() GUID {
	return SimpleTextInputProtocolGUID
}

func (in *Input) bind(p Platform, addr uint64) (err error) {
	if err = decode(p, &in.table, addr, simpleTextInputSize); err != nil {
		return
	}

	if in.table.ReadKeyStroke == 0 {
		return errors.New("invalid ReadKeyStroke pointer")
	}

	in.platform = p
	in.base = addr

	return
}

// ReadKeyStroke calls EFI_SIMPLE_TEXT_INPUT_PROTOCOL.ReadKeyStroke(),
// [ErrNotReady] is returned when no keystroke is pending.
func (in *Input) ReadKeyStroke() (k InputKey, err error) {
	key := &InputKey{}

	status := in.platform.Call(in.base+readKeyStroke,
		in.base,
		ptrval(key),
	)

	if err = parseStatus(status); err != nil {
		return
	}

	return *key, nil
}
