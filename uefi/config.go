// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
)

// configurationTableSize is the size of an EFI_CONFIGURATION_TABLE entry.
const configurationTableSize = 24

// maxConfigurationTables bounds the number of entries read from firmware.
const maxConfigurationTables = 256

// Well known configuration tables
var (
	ACPI20TableGUID  = NewGUID(0x8868e871, 0xe4f1, 0x11d3, [8]byte{0xbc, 0x22, 0x00, 0x80, 0xc7, 0x3c, 0x88, 0x81})
	ACPITableGUID    = NewGUID(0xeb9d2d30, 0x2d88, 0x11d3, [8]byte{0x9a, 0x16, 0x00, 0x90, 0x27, 0x3f, 0xc1, 0x4d})
	SMBIOSTableGUID  = NewGUID(0xeb9d2d31, 0x2d88, 0x11d3, [8]byte{0x9a, 0x16, 0x00, 0x90, 0x27, 0x3f, 0xc1, 0x4d})
	SMBIOS3TableGUID = NewGUID(0xf2fd1544, 0x9794, 0x4a2c, [8]byte{0x99, 0x2e, 0xe5, 0xbb, 0xcf, 0x20, 0xe3, 0x94})
)

var configurationTables = map[GUID]string{
	ACPI20TableGUID:  "ACPI 2.0",
	ACPITableGUID:    "ACPI 1.0",
	SMBIOSTableGUID:  "SMBIOS",
	SMBIOS3TableGUID: "SMBIOS3",
}

// ConfigurationTable represents an EFI Configuration Table.
type ConfigurationTable struct {
	GUID        GUID
	VendorTable uint64
}

// Name returns the table name, if well known, or its registry format GUID.
func (t *ConfigurationTable) Name() string {
	if name, ok := configurationTables[t.GUID]; ok {
		return name
	}

	return t.GUID.String()
}

// ConfigurationTables returns the EFI Configuration Tables.
func (s *Services) ConfigurationTables() (c []*ConfigurationTable, err error) {
	d := s.SystemTable

	if d == nil || d.NumberOfTableEntries == 0 || d.ConfigurationTable == 0 {
		return nil, errors.New("EFI Configuration Table is invalid")
	}

	if d.NumberOfTableEntries > maxConfigurationTables {
		return nil, fmt.Errorf("invalid number of configuration tables (%d)", d.NumberOfTableEntries)
	}

	buf := make([]byte, configurationTableSize*int(d.NumberOfTableEntries))

	if err = s.Platform.Read(d.ConfigurationTable, buf); err != nil {
		return
	}

	for i := 0; i < len(buf); i += configurationTableSize {
		t := &ConfigurationTable{}

		if err = unmarshalBinary(buf[i:i+configurationTableSize], t); err != nil {
			return
		}

		c = append(c, t)
	}

	return
}

// LocateConfiguration locates an EFI Configuration Table.
func (s *Services) LocateConfiguration(guid GUID) (t *ConfigurationTable, err error) {
	var c []*ConfigurationTable

	if c, err = s.ConfigurationTables(); err != nil {
		return
	}

	for _, t := range c {
		if t.GUID == guid {
			return t, nil
		}
	}

	return nil, ErrNotFound
}
