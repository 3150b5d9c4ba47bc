// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package console implements a buffered UCS-2 text writer over the UEFI
// Simple Text Output Protocol.
//
// Text is transcoded from UTF-8 into a fixed buffer which is transmitted
// to the firmware, null terminated, whenever it fills up and at the end of
// each write. Only characters representable as a single UCS-2 unit are
// supported, anything else is a programming error and causes a panic.
package console

import (
	"fmt"
	"sync"
	"unicode/utf8"
)

// BufferSize is the transcoding buffer capacity in UCS-2 units, including
// the null terminator.
const BufferSize = 128

const (
	cr = 0x0d
	lf = 0x0a
)

// Sink represents a UCS-2 text output device, such as [uefi.Console].
type Sink interface {
	// OutputString transmits a null terminated UCS-2 string.
	OutputString(s []uint16) error
}

// Writer implements [io.Writer] over a Sink, line feeds are translated to
// CR LF sequences.
type Writer struct {
	sync.Mutex

	sink Sink
	buf  [BufferSize]uint16
	i    int

	// incomplete UTF-8 sequence held from the previous write
	partial []byte
}

// NewWriter returns a Writer transmitting to the argument sink.
func NewWriter(sink Sink) *Writer {
	return &Writer{
		sink: sink,
	}
}

var (
	stdout *Writer
	once   sync.Once
)

// Init creates the process wide console writer on first invocation,
// subsequent calls ignore their argument and return the same instance.
func Init(sink Sink) *Writer {
	once.Do(func() {
		stdout = NewWriter(sink)
	})

	return stdout
}

// Stdout returns the process wide console writer, nil before [Init].
func Stdout() *Writer {
	return stdout
}

func (w *Writer) put(r rune) {
	if r == lf {
		w.buf[w.i] = cr
		w.buf[w.i+1] = lf
		w.i += 2
		return
	}

	w.buf[w.i] = uint16(r)
	w.i += 1
}

func (w *Writer) flush() (err error) {
	w.buf[w.i] = 0x00
	err = w.sink.OutputString(w.buf[:w.i+1])

	clear(w.buf[:])
	w.i = 0

	return
}

// Write implements the [io.Writer] interface. The buffer is always flushed
// before returning, the returned error is the first one reported by the
// sink. A multi-byte character split across writes is completed by the
// next write.
//
// Write panics if p is not valid UTF-8 or contains characters outside the
// Basic Multilingual Plane.
func (w *Writer) Write(p []byte) (n int, err error) {
	w.Lock()
	defer w.Unlock()

	held := len(w.partial)
	data := append(w.partial, p...)
	w.partial = nil

	for off := 0; off < len(data); {
		if !utf8.FullRune(data[off:]) {
			w.partial = append([]byte(nil), data[off:]...)
			break
		}

		r, size := utf8.DecodeRune(data[off:])

		if r == utf8.RuneError && size <= 1 {
			panic(fmt.Sprintf("invalid UTF-8 sequence at offset %d", off-held))
		}

		if r > 0xffff {
			panic(fmt.Sprintf("unsupported character %U", r))
		}

		// room for CR LF and the terminator
		if w.i+3 > BufferSize {
			if e := w.flush(); e != nil && err == nil {
				err = e
			}
		}

		w.put(r)
		off += size
	}

	if e := w.flush(); e != nil && err == nil {
		err = e
	}

	return len(p), err
}
