// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// GUID represents an EFI GUID (Globally Unique Identifier) as a 16-byte array
// with the native EFI byte order.
//
// Note: The registry string format (xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx)
// reorders the first three fields as little-endian. Internally, we keep the
// native EFI layout (as used in memory), i.e. 16 bytes where the first three
// fields are little-endian values.
type GUID [16]byte

// Protocol GUIDs
var (
	SimpleTextInputProtocolGUID  = NewGUID(0x387477c1, 0x69c7, 0x11d2, [8]byte{0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b})
	SimpleTextOutputProtocolGUID = NewGUID(0x387477c2, 0x69c7, 0x11d2, [8]byte{0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b})
	SimpleFileSystemProtocolGUID = NewGUID(0x964e5b22, 0x6459, 0x11d2, [8]byte{0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b})
	LoadedImageProtocolGUID      = NewGUID(0x5b1b31a1, 0x9562, 0x11d2, [8]byte{0x8e, 0x3f, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b})
	FileInfoGUID                 = NewGUID(0x09576e92, 0x6d3f, 0x11d2, [8]byte{0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b})
)

// NewGUID returns a GUID from its canonical EFI_GUID fields.
func NewGUID(data1 uint32, data2 uint16, data3 uint16, data4 [8]byte) (g GUID) {
	binary.LittleEndian.PutUint32(g[0:4], data1)
	binary.LittleEndian.PutUint16(g[4:6], data2)
	binary.LittleEndian.PutUint16(g[6:8], data3)
	copy(g[8:], data4[:])

	return
}

// Data1 returns the first EFI_GUID field.
func (g GUID) Data1() uint32 {
	return binary.LittleEndian.Uint32(g[0:4])
}

// Data2 returns the second EFI_GUID field.
func (g GUID) Data2() uint16 {
	return binary.LittleEndian.Uint16(g[4:6])
}

// Data3 returns the third EFI_GUID field.
func (g GUID) Data3() uint16 {
	return binary.LittleEndian.Uint16(g[6:8])
}

// Data4 returns the fourth EFI_GUID field.
func (g GUID) Data4() (d [8]byte) {
	copy(d[:], g[8:])
	return
}

// ParseGUID parses a GUID in registry string format into a native EFI GUID.
func ParseGUID(s string) (g GUID, err error) {
	u, err := uuid.Parse(s)

	if err != nil {
		return GUID{}, fmt.Errorf("invalid GUID format: %q, %w", s, err)
	}

	return swap(u), nil
}

// MustParseGUID is like ParseGUID but panics on error. It is intended for package
// level GUID declarations.
func MustParseGUID(s string) (g GUID) {
	var err error

	if g, err = ParseGUID(s); err != nil {
		panic(err)
	}

	return
}

// String returns the registry format string representation of the GUID.
// https://uefi.org/specs/UEFI/2.10/Apx_A_GUID_and_Time_Formats.html
func (g GUID) String() string {
	return uuid.UUID(swap(g)).String()
}

// swap converts between the RFC 4122 big-endian layout and the native EFI
// one, the conversion is its own inverse.
func swap(b [16]byte) (out [16]byte) {
	out = b

	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]

	return
}
