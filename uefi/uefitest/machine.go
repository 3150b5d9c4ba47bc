// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefitest

import (
	"encoding/binary"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/usbarmory/efi-loader/uefi"
)

// Published table layouts (UEFI Specification 2.10, 64-bit).
const (
	bootServicesSize = 0x178
	allocatePages    = 0x28
	freePages        = 0x30
	getMemoryMap     = 0x38
	handleProtocol   = 0x98
	exit             = 0xd8
	setWatchdogTimer = 0x100
	locateProtocol   = 0x140

	conOutSize   = 0x50
	outputString = 0x08
	clearScreen  = 0x30

	conInSize     = 0x18
	readKeyStroke = 0x08

	fileSystemSize = 0x10
	openVolume     = 0x08

	// revision 2 table, larger than the revision 1 prefix used by the
	// loader
	fileSize    = 0x78
	fileOpen    = 0x08
	fileClose   = 0x10
	fileRead    = 0x20
	fileWrite   = 0x28
	fileSetPos  = 0x38
	fileGetInfo = 0x40
	fileFlush   = 0x50

	signature             = 0x5453595320494249
	bootServicesSignature = 0x56524553544f4f42
)

// DefaultDescriptorSize is the descriptor stride used by common firmware
// implementations, larger than the 40 bytes defined by the specification.
const DefaultDescriptorSize = 48

// File represents a simulated file.
type File struct {
	Name     string
	Data     []byte
	Mode     uint64
	Modified uefi.Time
	Flushed  int
	Closed   bool

	dir bool
	pos int
}

// fileInfo returns the EFI_FILE_INFO encoding of f.
func (f *File) fileInfo() []byte {
	var attr uint64

	if f.dir {
		attr = uefi.EFI_FILE_DIRECTORY
	}

	name := utf16.Encode([]rune(f.Name + "\x00"))
	size := uint64(0x50 + 2*len(name))

	buf, err := binary.Append(nil, binary.LittleEndian, struct {
		Size             uint64
		FileSize         uint64
		PhysicalSize     uint64
		CreateTime       uefi.Time
		LastAccessTime   uefi.Time
		ModificationTime uefi.Time
		Attribute        uint64
	}{
		Size:             size,
		FileSize:         uint64(len(f.Data)),
		PhysicalSize:     (uint64(len(f.Data)) + 511) &^ 511,
		CreateTime:       f.Modified,
		LastAccessTime:   f.Modified,
		ModificationTime: f.Modified,
		Attribute:        attr,
	})

	if err != nil {
		panic(err)
	}

	// the null terminated name follows the fixed fields
	if buf, err = binary.Append(buf, binary.LittleEndian, name); err != nil {
		panic(err)
	}

	return buf
}

// Machine represents a simulated UEFI environment with a System Table,
// Boot Services, console, file system and memory map.
type Machine struct {
	*Firmware

	ImageHandle  uint64
	SystemTable  uint64
	BootServices uint64
	ConOut       uint64
	ConIn        uint64
	FileSystem   uint64

	// Output records each OutputString() string, terminator included.
	Output [][]uint16
	// ClearScreens counts ClearScreen() calls.
	ClearScreens int
	// Keys holds pending keystrokes.
	Keys []uefi.InputKey

	// Protocols maps installed protocols to their interface address.
	Protocols map[uefi.GUID]uint64

	// Descriptors represents the memory map.
	Descriptors []uefi.MemoryDescriptor
	// DescriptorSize is the memory map stride.
	DescriptorSize int
	// MapKey is the current memory map key.
	MapKey uint64
	// Watchdog is the firmware watchdog timeout in seconds, zero when
	// disabled.
	Watchdog uint64
	// ConfigurationTables are published in the System Table.
	ConfigurationTables []uefi.ConfigurationTable

	// ExitCode records the status passed to Exit(), nil until called.
	ExitCode *uefi.Status

	// Pages maps allocated page ranges to their size in pages.
	Pages map[uint64]uint64

	// Files holds the file system content by name.
	Files map[string]*File
	// MaxWrite, when positive, limits the bytes accepted by each Write().
	MaxWrite int
	// OpenStatus, WriteStatus and FlushStatus are returned by the
	// respective file services when set.
	OpenStatus  uefi.Status
	WriteStatus uefi.Status
	FlushStatus uefi.Status

	handles map[uint64]*File
	fileFns [fileSize / 8]uint64
}

// NewMachine returns a simulated UEFI environment.
func NewMachine() (m *Machine) {
	m = &Machine{
		Firmware:       New(),
		ImageHandle:    0x1000,
		Protocols:      make(map[uefi.GUID]uint64),
		DescriptorSize: DefaultDescriptorSize,
		MapKey:         0x4242,
		Pages:          make(map[uint64]uint64),
		Watchdog:       300,
		Files:          make(map[string]*File),
		handles:        make(map[uint64]*File),
	}

	m.Descriptors = []uefi.MemoryDescriptor{
		{Type: uefi.EfiBootServicesCode, PhysicalStart: 0x0, NumberOfPages: 0xa0},
		{Type: uefi.EfiConventionalMemory, PhysicalStart: 0x100000, NumberOfPages: 0x700},
		{Type: uefi.EfiLoaderCode, PhysicalStart: 0x800000, NumberOfPages: 0x200},
		{Type: uefi.EfiACPIReclaimMemory, PhysicalStart: 0x7fe0000, NumberOfPages: 0x10, Attribute: 0xf},
		{Type: uefi.EfiMemoryMappedIO, PhysicalStart: 0xfec00000, NumberOfPages: 0x1, Attribute: 0x8000000000000001},
	}

	m.BootServices = m.Alloc(bootServicesSize)
	m.Put(m.BootServices, uefi.TableHeader{
		Signature:  bootServicesSignature,
		Revision:   0x20046,
		HeaderSize: bootServicesSize,
	})
	m.slot(m.BootServices, allocatePages, m.allocatePages)
	m.slot(m.BootServices, freePages, m.freePages)
	m.slot(m.BootServices, getMemoryMap, m.getMemoryMap)
	m.slot(m.BootServices, handleProtocol, m.handleProtocol)
	m.slot(m.BootServices, locateProtocol, m.locateProtocol)
	m.slot(m.BootServices, setWatchdogTimer, m.setWatchdogTimer)
	m.slot(m.BootServices, exit, m.exit)

	m.ConOut = m.Alloc(conOutSize)
	m.slot(m.ConOut, outputString, m.outputString)
	m.slot(m.ConOut, clearScreen, m.clearScreen)
	m.Protocols[uefi.SimpleTextOutputProtocolGUID] = m.ConOut

	m.ConIn = m.Alloc(conInSize)
	m.slot(m.ConIn, readKeyStroke, m.readKeyStroke)
	m.Protocols[uefi.SimpleTextInputProtocolGUID] = m.ConIn

	m.FileSystem = m.Alloc(fileSystemSize)
	m.Put(m.FileSystem, uint64(uefi.EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_REVISION))
	m.slot(m.FileSystem, openVolume, m.openVolume)
	m.Protocols[uefi.SimpleFileSystemProtocolGUID] = m.FileSystem

	m.fileFns[0] = uefi.EFI_FILE_PROTOCOL_REVISION2
	m.fileFns[fileOpen/8] = m.Service(m.fileOpen)
	m.fileFns[fileClose/8] = m.Service(m.fileClose)
	m.fileFns[fileRead/8] = m.Service(m.fileRead)
	m.fileFns[fileWrite/8] = m.Service(m.fileWrite)
	m.fileFns[fileSetPos/8] = m.Service(m.fileSetPosition)
	m.fileFns[fileGetInfo/8] = m.Service(m.fileGetInfo)
	m.fileFns[fileFlush/8] = m.Service(m.fileFlush)

	m.ConfigurationTables = []uefi.ConfigurationTable{
		{GUID: uefi.ACPI20TableGUID, VendorTable: 0x7fe0000},
		{GUID: uefi.SMBIOS3TableGUID, VendorTable: 0x7fe8000},
	}

	vendor := utf16.Encode([]rune("EDK II\x00"))

	m.SystemTable = m.New(uefi.SystemTable{
		Header: uefi.TableHeader{
			Signature:  signature,
			Revision:   0x20046,
			HeaderSize: 0x78,
		},
		FirmwareVendor:       m.New(vendor),
		FirmwareRevision:     0x10000,
		ConsoleInHandle:      0x2000,
		ConIn:                m.ConIn,
		ConsoleOutHandle:     0x3000,
		ConOut:               m.ConOut,
		BootServices:         m.BootServices,
		NumberOfTableEntries: uint64(len(m.ConfigurationTables)),
		ConfigurationTable:   m.New(m.ConfigurationTables),
	})

	return
}

func (m *Machine) exit(args []uint64) uefi.Status {
	if args[0] != m.ImageHandle {
		return uefi.EFI_INVALID_PARAMETER
	}

	code := uefi.Status(args[1])
	m.ExitCode = &code

	return uefi.EFI_SUCCESS
}

func (m *Machine) slot(table uint64, off uint64, fn Service) {
	m.Put(table+off, m.Service(fn))
}

// Text returns the console output decoded as a string, terminators removed.
func (m *Machine) Text() string {
	var sb strings.Builder

	for _, s := range m.Output {
		if n := len(s); n > 0 && s[n-1] == 0 {
			s = s[:n-1]
		}

		sb.WriteString(string(utf16.Decode(s)))
	}

	return sb.String()
}

// Type queues keystrokes for ReadKeyStroke().
func (m *Machine) Type(s string) {
	for _, c := range utf16.Encode([]rune(s)) {
		m.Keys = append(m.Keys, uefi.InputKey{UnicodeChar: c})
	}
}

func (m *Machine) getMemoryMap(args []uint64) uefi.Status {
	size := Uint64(args[0])
	stride := m.DescriptorSize
	required := uint64(len(m.Descriptors) * stride)

	*Uint64(args[3]) = uint64(stride)

	if *size < required || args[1] == 0 {
		*size = required
		return uefi.EFI_BUFFER_TOO_SMALL
	}

	buf := Bytes(args[1], int(required))

	for i := range buf {
		// poison the padding beyond the specified fields
		buf[i] = 0xaa
	}

	for i, d := range m.Descriptors {
		if _, err := binary.Encode(buf[i*stride:], binary.LittleEndian, d); err != nil {
			return uefi.EFI_DEVICE_ERROR
		}
	}

	*size = required
	*Uint64(args[2]) = m.MapKey
	*Uint32(args[4]) = 1

	return uefi.EFI_SUCCESS
}

// conventional returns the index of the conventional memory descriptor
// containing the argument range, -1 if none.
func (m *Machine) conventional(addr uint64, n uint64) int {
	for i, d := range m.Descriptors {
		if d.Type == uefi.EfiConventionalMemory && addr >= d.PhysicalStart && addr+n*uefi.PageSize <= d.PhysicalEnd() {
			return i
		}
	}

	return -1
}

func (m *Machine) allocatePages(args []uint64) uefi.Status {
	allocateType := uefi.AllocateType(args[0])
	n := args[2]
	addr := Uint64(args[3])

	if n == 0 || args[1] >= uefi.EfiMaxMemoryType {
		return uefi.EFI_INVALID_PARAMETER
	}

	switch allocateType {
	case uefi.AllocateAddress:
		if *addr%uefi.PageSize != 0 {
			return uefi.EFI_INVALID_PARAMETER
		}
	case uefi.AllocateAnyPages:
		*addr = 0

		for _, d := range m.Descriptors {
			if d.Type == uefi.EfiConventionalMemory && d.NumberOfPages >= n {
				*addr = d.PhysicalStart
				break
			}
		}
	default:
		return uefi.EFI_UNSUPPORTED
	}

	i := m.conventional(*addr, n)

	if i < 0 {
		return uefi.EFI_NOT_FOUND
	}

	// carve the allocation out of the free range
	d := m.Descriptors[i]
	alloc := uefi.MemoryDescriptor{Type: uint32(args[1]), PhysicalStart: *addr, NumberOfPages: n}
	head := uefi.MemoryDescriptor{Type: d.Type, PhysicalStart: d.PhysicalStart, NumberOfPages: (*addr - d.PhysicalStart) / uefi.PageSize}
	tail := uefi.MemoryDescriptor{Type: d.Type, PhysicalStart: alloc.PhysicalEnd(), NumberOfPages: (d.PhysicalEnd() - alloc.PhysicalEnd()) / uefi.PageSize}

	var split []uefi.MemoryDescriptor

	for _, e := range []uefi.MemoryDescriptor{head, alloc, tail} {
		if e.NumberOfPages > 0 {
			split = append(split, e)
		}
	}

	m.Descriptors = append(m.Descriptors[:i], append(split, m.Descriptors[i+1:]...)...)
	m.Pages[*addr] = n
	m.MapKey += 1

	return uefi.EFI_SUCCESS
}

func (m *Machine) freePages(args []uint64) uefi.Status {
	if n, ok := m.Pages[args[0]]; !ok || n != args[1] {
		return uefi.EFI_NOT_FOUND
	}

	for i, d := range m.Descriptors {
		if d.PhysicalStart == args[0] {
			m.Descriptors[i].Type = uefi.EfiConventionalMemory
		}
	}

	delete(m.Pages, args[0])
	m.MapKey += 1

	return uefi.EFI_SUCCESS
}

func (m *Machine) setWatchdogTimer(args []uint64) uefi.Status {
	if args[1] <= 0xffff {
		// reserved for firmware use
		return uefi.EFI_INVALID_PARAMETER
	}

	m.Watchdog = args[0]

	return uefi.EFI_SUCCESS
}

func (m *Machine) protocol(guidPtr uint64, ifacePtr uint64) uefi.Status {
	var guid uefi.GUID

	copy(guid[:], Bytes(guidPtr, len(guid)))

	addr, ok := m.Protocols[guid]

	if !ok {
		return uefi.EFI_NOT_FOUND
	}

	*Uint64(ifacePtr) = addr

	return uefi.EFI_SUCCESS
}

func (m *Machine) locateProtocol(args []uint64) uefi.Status {
	return m.protocol(args[0], args[2])
}

func (m *Machine) handleProtocol(args []uint64) uefi.Status {
	if args[0] == 0 {
		return uefi.EFI_INVALID_PARAMETER
	}

	return m.protocol(args[1], args[2])
}

func (m *Machine) outputString(args []uint64) uefi.Status {
	if args[0] != m.ConOut {
		return uefi.EFI_INVALID_PARAMETER
	}

	m.Output = append(m.Output, String(args[1]))

	return uefi.EFI_SUCCESS
}

func (m *Machine) clearScreen(args []uint64) uefi.Status {
	if args[0] != m.ConOut {
		return uefi.EFI_INVALID_PARAMETER
	}

	m.ClearScreens += 1

	return uefi.EFI_SUCCESS
}

func (m *Machine) readKeyStroke(args []uint64) uefi.Status {
	if len(m.Keys) == 0 {
		return uefi.EFI_NOT_READY
	}

	k := m.Keys[0]
	m.Keys = m.Keys[1:]

	buf := Bytes(args[1], 4)
	binary.LittleEndian.PutUint16(buf[0:], k.ScanCode)
	binary.LittleEndian.PutUint16(buf[2:], k.UnicodeChar)

	return uefi.EFI_SUCCESS
}

// handle allocates a File Protocol Interface Table for f.
func (m *Machine) handle(f *File) (addr uint64) {
	addr = m.New(m.fileFns)
	m.handles[addr] = f

	return
}

func (m *Machine) openVolume(args []uint64) uefi.Status {
	if args[0] != m.FileSystem {
		return uefi.EFI_INVALID_PARAMETER
	}

	*Uint64(args[1]) = m.handle(&File{Name: `\`, dir: true})

	return uefi.EFI_SUCCESS
}

func (m *Machine) fileOpen(args []uint64) uefi.Status {
	if _, ok := m.handles[args[0]]; !ok {
		return uefi.EFI_INVALID_PARAMETER
	}

	if m.OpenStatus != uefi.EFI_SUCCESS {
		return m.OpenStatus
	}

	s := String(args[2])
	name := string(utf16.Decode(s[:len(s)-1]))
	mode := args[3]

	f, ok := m.Files[name]

	if !ok {
		if mode&uefi.EFI_FILE_MODE_CREATE == 0 {
			return uefi.EFI_NOT_FOUND
		}

		f = &File{Name: name}
		m.Files[name] = f
	}

	f.Mode = mode
	f.pos = 0
	*Uint64(args[1]) = m.handle(f)

	return uefi.EFI_SUCCESS
}

func (m *Machine) fileClose(args []uint64) uefi.Status {
	f, ok := m.handles[args[0]]

	if !ok {
		return uefi.EFI_INVALID_PARAMETER
	}

	f.Closed = true
	delete(m.handles, args[0])

	return uefi.EFI_SUCCESS
}

func (m *Machine) fileRead(args []uint64) uefi.Status {
	f, ok := m.handles[args[0]]

	if !ok {
		return uefi.EFI_INVALID_PARAMETER
	}

	size := Uint64(args[1])

	if f.dir {
		return m.readDir(f, size, args[2])
	}

	n := copy(Bytes(args[2], int(*size)), f.Data[f.pos:])
	f.pos += n
	*size = uint64(n)

	return uefi.EFI_SUCCESS
}

func (m *Machine) fileSetPosition(args []uint64) uefi.Status {
	f, ok := m.handles[args[0]]

	if !ok {
		return uefi.EFI_INVALID_PARAMETER
	}

	pos := args[1]

	switch {
	case f.dir && pos != 0:
		return uefi.EFI_UNSUPPORTED
	case pos == ^uint64(0):
		f.pos = len(f.Data)
	default:
		f.pos = int(min(pos, uint64(len(f.Data))))
	}

	return uefi.EFI_SUCCESS
}

// readDir returns the next directory entry, in name order.
func (m *Machine) readDir(f *File, size *uint64, buf uint64) uefi.Status {
	var names []string

	for name := range m.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	if f.pos >= len(names) {
		*size = 0
		return uefi.EFI_SUCCESS
	}

	info := m.Files[names[f.pos]].fileInfo()

	if *size < uint64(len(info)) {
		*size = uint64(len(info))
		return uefi.EFI_BUFFER_TOO_SMALL
	}

	copy(Bytes(buf, len(info)), info)
	*size = uint64(len(info))
	f.pos += 1

	return uefi.EFI_SUCCESS
}

func (m *Machine) fileGetInfo(args []uint64) uefi.Status {
	var guid uefi.GUID

	f, ok := m.handles[args[0]]

	if !ok {
		return uefi.EFI_INVALID_PARAMETER
	}

	copy(guid[:], Bytes(args[1], len(guid)))

	if guid != uefi.FileInfoGUID {
		return uefi.EFI_UNSUPPORTED
	}

	size := Uint64(args[2])
	info := f.fileInfo()

	if *size < uint64(len(info)) {
		*size = uint64(len(info))
		return uefi.EFI_BUFFER_TOO_SMALL
	}

	copy(Bytes(args[3], len(info)), info)
	*size = uint64(len(info))

	return uefi.EFI_SUCCESS
}

func (m *Machine) fileWrite(args []uint64) uefi.Status {
	f, ok := m.handles[args[0]]

	if !ok {
		return uefi.EFI_INVALID_PARAMETER
	}

	size := Uint64(args[1])

	if f.Mode&uefi.EFI_FILE_MODE_WRITE == 0 {
		*size = 0
		return uefi.EFI_ACCESS_DENIED
	}

	if m.WriteStatus != uefi.EFI_SUCCESS {
		*size = 0
		return m.WriteStatus
	}

	n := int(*size)

	if m.MaxWrite > 0 && n > m.MaxWrite {
		n = m.MaxWrite
	}

	f.Data = append(f.Data, Bytes(args[2], n)...)
	*size = uint64(n)

	return uefi.EFI_SUCCESS
}

func (m *Machine) fileFlush(args []uint64) uefi.Status {
	f, ok := m.handles[args[0]]

	if !ok {
		return uefi.EFI_INVALID_PARAMETER
	}

	if m.FlushStatus != uefi.EFI_SUCCESS {
		return m.FlushStatus
	}

	f.Flushed += 1

	return uefi.EFI_SUCCESS
}
