// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/usbarmory/efi-loader/uefi"
)

var protocolGUIDs = []struct {
	name     string
	guid     uefi.GUID
	registry string
	native   []byte
}{
	{
		"EFI_SIMPLE_TEXT_INPUT_PROTOCOL",
		uefi.SimpleTextInputProtocolGUID,
		"387477c1-69c7-11d2-8e39-00a0c969723b",
		[]byte{0xc1, 0x77, 0x74, 0x38, 0xc7, 0x69, 0xd2, 0x11, 0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b},
	},
	{
		"EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL",
		uefi.SimpleTextOutputProtocolGUID,
		"387477c2-69c7-11d2-8e39-00a0c969723b",
		[]byte{0xc2, 0x77, 0x74, 0x38, 0xc7, 0x69, 0xd2, 0x11, 0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b},
	},
	{
		"EFI_SIMPLE_FILE_SYSTEM_PROTOCOL",
		uefi.SimpleFileSystemProtocolGUID,
		"964e5b22-6459-11d2-8e39-00a0c969723b",
		[]byte{0x22, 0x5b, 0x4e, 0x96, 0x59, 0x64, 0xd2, 0x11, 0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b},
	},
	{
		"EFI_LOADED_IMAGE_PROTOCOL",
		uefi.LoadedImageProtocolGUID,
		"5b1b31a1-9562-11d2-8e3f-00a0c969723b",
		[]byte{0xa1, 0x31, 0x1b, 0x5b, 0x62, 0x95, 0xd2, 0x11, 0x8e, 0x3f, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b},
	},
	{
		"EFI_FILE_INFO_ID",
		uefi.FileInfoGUID,
		"09576e92-6d3f-11d2-8e39-00a0c969723b",
		[]byte{0x92, 0x6e, 0x57, 0x09, 0x3f, 0x6d, 0xd2, 0x11, 0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b},
	},
}

func TestGUIDEncoding(t *testing.T) {
	for _, tc := range protocolGUIDs {
		var buf []byte

		buf = binary.LittleEndian.AppendUint32(buf, tc.guid.Data1())
		buf = binary.LittleEndian.AppendUint16(buf, tc.guid.Data2())
		buf = binary.LittleEndian.AppendUint16(buf, tc.guid.Data3())
		d4 := tc.guid.Data4()
		buf = append(buf, d4[:]...)

		if !bytes.Equal(buf, tc.native) {
			t.Errorf("%s: fields encode to %x, expected %x", tc.name, buf, tc.native)
		}

		if !bytes.Equal(tc.guid[:], tc.native) {
			t.Errorf("%s: in memory %x, expected %x", tc.name, tc.guid[:], tc.native)
		}
	}
}

func TestGUIDRegistryFormat(t *testing.T) {
	for _, tc := range protocolGUIDs {
		if s := tc.guid.String(); s != tc.registry {
			t.Errorf("%s: string %s, expected %s", tc.name, s, tc.registry)
		}

		g, err := uefi.ParseGUID(tc.registry)

		if err != nil {
			t.Fatal(err)
		}

		if g != tc.guid {
			t.Errorf("%s: parsed %x, expected %x", tc.name, g[:], tc.guid[:])
		}
	}
}

func TestParseGUIDInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		"964e5b22-6459-11d2-8e39",
		"964e5b22-6459-11d2-8e39-00a0c969723z",
	} {
		if _, err := uefi.ParseGUID(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}

func TestMustParseGUIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()

	uefi.MustParseGUID("invalid")
}
