// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf16"
	"unsafe"
)

const (
	EFI_FILE_PROTOCOL_REVISION  = 0x00010000
	EFI_FILE_PROTOCOL_REVISION2 = 0x00020000
)

// EFI File Protocol open modes
const (
	EFI_FILE_MODE_READ   = 0x0000000000000001
	EFI_FILE_MODE_WRITE  = 0x0000000000000002
	EFI_FILE_MODE_CREATE = 0x8000000000000000
)

// MaxFileName is the capacity, in UCS-2 units and including the null
// terminator, of the file name transcoding buffer.
const MaxFileName = 32

// ErrNullHandle is returned when the firmware reports success on open
// without returning a file handle.
var ErrNullHandle = errors.New("null file handle")

// OpenMode represents the EFI File Protocol open mode bitmask.
type OpenMode uint64

// Supported open modes
const (
	Read            OpenMode = EFI_FILE_MODE_READ
	ReadWrite       OpenMode = EFI_FILE_MODE_READ | EFI_FILE_MODE_WRITE
	CreateReadWrite OpenMode = EFI_FILE_MODE_CREATE | EFI_FILE_MODE_READ | EFI_FILE_MODE_WRITE
)

// fileProtocol represents the EFI File Protocol Interface Table, revision 2
// tables only append functions which are not used.
type fileProtocol struct {
	Revision    uint64
	Open        uint64
	Close       uint64
	Delete      uint64
	Read        uint64
	Write       uint64
	GetPosition uint64
	SetPosition uint64
	GetInfo     uint64
	SetInfo     uint64
	Flush       uint64
}

// EFI File Protocol offsets
const (
	fileOpen  = uint64(unsafe.Offsetof(fileProtocol{}.Open))
	fileClose = uint64(unsafe.Offsetof(fileProtocol{}.Close))
	fileRead  = uint64(unsafe.Offsetof(fileProtocol{}.Read))
	fileWrite = uint64(unsafe.Offsetof(fileProtocol{}.Write))
	fileFlush = uint64(unsafe.Offsetof(fileProtocol{}.Flush))

	fileSetPosition = uint64(unsafe.Offsetof(fileProtocol{}.SetPosition))
)

// File represents an EFI File Protocol instance, it is a non-owning
// reference to a firmware file handle.
type File struct {
	platform Platform
	base     uint64
	table    fileProtocol
	name     string
}

func newFile(p Platform, addr uint64, name string) (f *File, err error) {
	if addr == 0 {
		return nil, ErrNullHandle
	}

	f = &File{
		platform: p,
		base:     addr,
		name:     name,
	}

	if err = decode(p, &f.table, addr, fileProtocolSize); err != nil {
		return nil, err
	}

	if r := f.table.Revision; r != EFI_FILE_PROTOCOL_REVISION && r != EFI_FILE_PROTOCOL_REVISION2 {
		return nil, fmt.Errorf("invalid protocol revision (%#x)", r)
	}

	return
}

// Name returns the name used to open the file.
func (f *File) Name() string {
	return f.name
}

// Open calls EFI_FILE_PROTOCOL.Open() to open a file relative to the
// receiver location.
//
// The name is transcoded in a fixed [MaxFileName] buffer, longer names are
// a programming error and cause a panic.
func (f *File) Open(name string, mode OpenMode) (_ *File, err error) {
	var addr uint64
	var buf [MaxFileName]uint16

	s := utf16.Encode([]rune(name))

	if len(s) >= MaxFileName {
		panic(fmt.Sprintf("file name exceeds %d characters", MaxFileName-1))
	}

	copy(buf[:], s)

	status := f.platform.Call(f.base+fileOpen,
		f.base,
		ptrval(&addr),
		ptrval(&buf[0]),
		uint64(mode),
		0,
	)

	if err = parseStatus(status); err != nil {
		return nil, fmt.Errorf("could not open %s, %w", name, err)
	}

	return newFile(f.platform, addr, name)
}

// WriteStatus calls EFI_FILE_PROTOCOL.Write() once, returning the number of
// bytes written and the firmware status unchanged.
func (f *File) WriteStatus(p []byte) (n uint64, status Status) {
	if len(p) == 0 {
		return 0, EFI_SUCCESS
	}

	n = uint64(len(p))

	status = Status(f.platform.Call(f.base+fileWrite,
		f.base,
		ptrval(&n),
		ptrval(&p[0]),
	))

	return min(n, uint64(len(p))), status
}

// Write implements the [io.Writer] interface, partial writes are retried
// as long as the firmware makes progress.
func (f *File) Write(p []byte) (n int, err error) {
	for n < len(p) {
		w, status := f.WriteStatus(p[n:])
		n += int(w)

		if err = parseStatus(uint64(status)); err != nil {
			return n, fmt.Errorf("could not write %s, %w", f.name, err)
		}

		if w == 0 {
			return n, io.ErrShortWrite
		}
	}

	return
}

// Read implements the [io.Reader] interface over EFI_FILE_PROTOCOL.Read().
func (f *File) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return
	}

	size := uint64(len(p))

	status := f.platform.Call(f.base+fileRead,
		f.base,
		ptrval(&size),
		ptrval(&p[0]),
	)

	if err = parseStatus(status); err != nil {
		return 0, fmt.Errorf("could not read %s, %w", f.name, err)
	}

	if size == 0 {
		return 0, io.EOF
	}

	return int(min(size, uint64(len(p)))), nil
}

// SetPosition calls EFI_FILE_PROTOCOL.SetPosition(), on directories only
// zero is valid and restarts the directory listing.
func (f *File) SetPosition(pos uint64) (err error) {
	status := f.platform.Call(f.base+fileSetPosition,
		f.base,
		pos,
	)

	if err = parseStatus(status); err != nil {
		return fmt.Errorf("could not set position of %s, %w", f.name, err)
	}

	return
}

// FlushStatus calls EFI_FILE_PROTOCOL.Flush(), returning the firmware status
// unchanged.
func (f *File) FlushStatus() Status {
	return Status(f.platform.Call(f.base+fileFlush,
		f.base,
	))
}

// Flush calls EFI_FILE_PROTOCOL.Flush().
func (f *File) Flush() (err error) {
	if err = parseStatus(uint64(f.FlushStatus())); err != nil {
		return fmt.Errorf("could not flush %s, %w", f.name, err)
	}

	return
}

// Close calls EFI_FILE_PROTOCOL.Close(), the receiver must not be used
// afterwards.
func (f *File) Close() error {
	status := f.platform.Call(f.base+fileClose,
		f.base,
	)

	return parseStatus(status)
}
