// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"fmt"
	"unsafe"
)

const EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_REVISION = 0x00010000

// simpleFileSystemProtocol represents the EFI Simple File System Protocol
// Interface Table.
type simpleFileSystemProtocol struct {
	Revision   uint64
	OpenVolume uint64
}

// EFI Simple File System Protocol offsets
const openVolume = uint64(unsafe.Offsetof(simpleFileSystemProtocol{}.OpenVolume))

// SimpleFileSystem represents an EFI Simple File System Protocol instance.
type SimpleFileSystem struct {
	platform Platform
	base     uint64
	table    simpleFileSystemProtocol
}

// GUID returns the EFI Simple File System Protocol GUID.
func (root *SimpleFileSystem) GUID() GUID {
	return SimpleFileSystemProtocolGUID
}

func (root *SimpleFileSystem) bind(p Platform, addr uint64) (err error) {
	if err = decode(p, &root.table, addr, simpleFileSystemSize); err != nil {
		return
	}

	if root.table.Revision != EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_REVISION {
		return fmt.Errorf("invalid protocol revision (%#x)", root.table.Revision)
	}

	root.platform = p
	root.base = addr

	return
}

// OpenVolume calls EFI_SIMPLE_FILE SYSTEM_PROTOCOL.OpenVolume().
func (root *SimpleFileSystem) OpenVolume() (f *File, err error) {
	var addr uint64

	status := root.platform.Call(root.base+openVolume,
		root.base,
		ptrval(&addr),
	)

	if err = parseStatus(status); err != nil {
		return
	}

	return newFile(root.platform, addr, `\`)
}
