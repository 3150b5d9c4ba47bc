// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Binary sizes of the overlaid firmware structures, as published in the UEFI
// specification for 64-bit architectures.
const (
	systemTableSize       = 0x78
	bootServicesTableSize = 0x178
	simpleTextOutputSize  = 0x50
	simpleTextInputSize   = 0x18
	simpleFileSystemSize  = 0x10
	fileProtocolSize      = 0x58
	memoryDescriptorSize  = 0x28
	fileInfoSize          = 0x50
)

func unmarshalBinary(buf []byte, data any) (err error) {
	_, err = binary.Decode(buf, binary.LittleEndian, data)
	return
}

// decode copies the firmware structure at addr into data, after verifying
// that the Go definition of data has exactly the published size.
func decode(p Platform, data any, addr uint64, size int) (err error) {
	if addr == 0 {
		return errors.New("invalid address")
	}

	if n := binary.Size(data); n != size {
		return fmt.Errorf("invalid layout, %T is %d bytes (expected %d)", data, n, size)
	}

	buf := make([]byte, size)

	if err = p.Read(addr, buf); err != nil {
		return
	}

	return unmarshalBinary(buf, data)
}
