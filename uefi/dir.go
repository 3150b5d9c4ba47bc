// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"
	"unicode/utf16"
	"unsafe"
)

// EFI File Protocol attributes
const (
	EFI_FILE_READ_ONLY = 0x01
	EFI_FILE_HIDDEN    = 0x02
	EFI_FILE_SYSTEM    = 0x04
	EFI_FILE_DIRECTORY = 0x10
	EFI_FILE_ARCHIVE   = 0x20
)

// maxFileInfo is the EFI_FILE_INFO buffer size used for directory reads, it
// accommodates names of up to 255 characters.
const maxFileInfo = fileInfoSize + 256*2

const fileGetInfo = uint64(unsafe.Offsetof(fileProtocol{}.GetInfo))

// Time represents an EFI_TIME instance.
type Time struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	_          uint8
	Nanosecond uint32
	TimeZone   int16
	Daylight   uint8
	_          uint8
}

// unspecifiedTimeZone indicates local time.
const unspecifiedTimeZone = 0x07ff

// Time converts an EFI_TIME to [time.Time].
func (t *Time) Time() time.Time {
	loc := time.UTC

	if t.TimeZone != unspecifiedTimeZone {
		// EFI time zones are minutes to add to local time for UTC
		loc = time.FixedZone("", -int(t.TimeZone)*60)
	}

	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day),
		int(t.Hour), int(t.Minute), int(t.Second), int(t.Nanosecond), loc)
}

// fileInfo represents the fixed portion of an EFI_FILE_INFO instance, the
// null terminated file name follows.
type fileInfo struct {
	Size             uint64
	FileSize         uint64
	PhysicalSize     uint64
	CreateTime       Time
	LastAccessTime   Time
	ModificationTime Time
	Attribute        uint64
}

// FileInfo implements the [fs.FileInfo] interface for EFI_FILE_INFO.
type FileInfo struct {
	info fileInfo
	name string
}

func decodeFileInfo(buf []byte) (fi *FileInfo, err error) {
	fi = &FileInfo{}

	if len(buf) < fileInfoSize {
		return nil, fmt.Errorf("invalid file information size (%d)", len(buf))
	}

	if err = unmarshalBinary(buf[:fileInfoSize], &fi.info); err != nil {
		return
	}

	if fi.info.Size < fileInfoSize || fi.info.Size > uint64(len(buf)) {
		return nil, fmt.Errorf("invalid file information size (%d)", fi.info.Size)
	}

	var name []uint16

	for i := fileInfoSize; i+1 < int(fi.info.Size); i += 2 {
		c := binary.LittleEndian.Uint16(buf[i:])

		if c == 0 {
			break
		}

		name = append(name, c)
	}

	fi.name = string(utf16.Decode(name))

	return
}

// Name returns the base name of the file.
func (fi *FileInfo) Name() string {
	return fi.name
}

// Size returns the file size in bytes.
func (fi *FileInfo) Size() int64 {
	return int64(fi.info.FileSize)
}

// Mode returns the file mode bits.
func (fi *FileInfo) Mode() (mode fs.FileMode) {
	mode = 0644

	if fi.info.Attribute&EFI_FILE_READ_ONLY != 0 {
		mode = 0444
	}

	if fi.IsDir() {
		mode |= fs.ModeDir | 0111
	}

	return
}

// ModTime returns the file modification time.
func (fi *FileInfo) ModTime() time.Time {
	return fi.info.ModificationTime.Time()
}

// IsDir reports whether the file is a directory.
func (fi *FileInfo) IsDir() bool {
	return fi.info.Attribute&EFI_FILE_DIRECTORY != 0
}

// Sys returns the EFI file attributes.
func (fi *FileInfo) Sys() any {
	return fi.info.Attribute
}

// Stat calls EFI_FILE_PROTOCOL.GetInfo() to return the file information.
func (f *File) Stat() (fi *FileInfo, err error) {
	guid := FileInfoGUID
	buf := make([]byte, maxFileInfo)

	for range 2 {
		size := uint64(len(buf))

		status := f.platform.Call(f.base+fileGetInfo,
			f.base,
			ptrval(&guid),
			ptrval(&size),
			ptrval(&buf[0]),
		)

		if Status(status) == EFI_BUFFER_TOO_SMALL && size > uint64(len(buf)) {
			buf = make([]byte, size)
			continue
		}

		if err = parseStatus(status); err != nil {
			return nil, fmt.Errorf("could not stat %s, %w", f.name, err)
		}

		return decodeFileInfo(buf[:min(size, uint64(len(buf)))])
	}

	return nil, fmt.Errorf("could not stat %s, %w", f.name, ErrBufferTooSmall)
}

// DirEntry implements the [fs.DirEntry] interface for the EFI File Protocol.
type DirEntry struct {
	fi *FileInfo
}

// Name returns the name of the file (or subdirectory) described by the entry.
func (d DirEntry) Name() string {
	return d.fi.name
}

// IsDir reports whether the entry describes a directory.
func (d DirEntry) IsDir() bool {
	return d.fi.IsDir()
}

// Type returns the file type bits.
func (d DirEntry) Type() fs.FileMode {
	return d.fi.Mode().Type()
}

// Info returns the FileInfo for the file or subdirectory described by the entry.
func (d DirEntry) Info() (fs.FileInfo, error) {
	return d.fi, nil
}

// ReadDir reads the contents of the directory and returns a slice of up to n
// DirEntry values in directory order, all remaining entries when n <= 0.
// Subsequent calls on the same file will yield further DirEntry values.
func (f *File) ReadDir(n int) (entries []fs.DirEntry, err error) {
	buf := make([]byte, maxFileInfo)

	for n <= 0 || len(entries) < n {
		var fi *FileInfo

		size, err := f.Read(buf)

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return entries, err
		}

		if fi, err = decodeFileInfo(buf[:size]); err != nil {
			return entries, err
		}

		// skip self and parent references
		if fi.name == "." || fi.name == ".." {
			continue
		}

		entries = append(entries, DirEntry{fi: fi})
	}

	if n > 0 && len(entries) == 0 {
		return nil, io.EOF
	}

	return
}
