// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package console

import (
	"bytes"
	"errors"
	"runtime"
	"unicode/utf8"

	"github.com/usbarmory/efi-loader/uefi"
)

// EFI scan codes
const (
	scanUp     = 0x01
	scanDown   = 0x02
	scanRight  = 0x03
	scanLeft   = 0x04
	scanHome   = 0x05
	scanEnd    = 0x06
	scanDelete = 0x08
	scanEscape = 0x17
)

var escapeSequences = map[uint16][]byte{
	scanUp:     []byte("\x1b[A"),
	scanDown:   []byte("\x1b[B"),
	scanRight:  []byte("\x1b[C"),
	scanLeft:   []byte("\x1b[D"),
	scanHome:   []byte("\x1b[H"),
	scanEnd:    []byte("\x1b[F"),
	scanDelete: []byte("\x1b[3~"),
	scanEscape: []byte("\x1b"),
}

// Source represents a keystroke input device, such as [uefi.Input].
type Source interface {
	// ReadKeyStroke returns the next keystroke, or an error matching
	// [uefi.ErrNotReady] when none is pending.
	ReadKeyStroke() (uefi.InputKey, error)
}

// Terminal implements [io.ReadWriter] over a console Writer and keystroke
// Source, suitable for use with line editors.
type Terminal struct {
	Out *Writer
	In  Source

	pending []byte
}

// Read implements the [io.Reader] interface, it polls the input source until
// at least one keystroke is available.
func (t *Terminal) Read(p []byte) (n int, err error) {
	for len(t.pending) == 0 {
		k, err := t.In.ReadKeyStroke()

		switch {
		case errors.Is(err, uefi.ErrNotReady):
			runtime.Gosched()
			continue
		case err != nil:
			return 0, err
		}

		if k.UnicodeChar != 0 {
			t.pending = utf8.AppendRune(t.pending, rune(k.UnicodeChar))
		} else if seq, ok := escapeSequences[k.ScanCode]; ok {
			t.pending = append(t.pending, seq...)
		}
	}

	n = copy(p, t.pending)
	t.pending = t.pending[n:]

	return
}

// Write implements the [io.Writer] interface, CR LF sequences are reduced to
// LF as the underlying writer performs the translation.
func (t *Terminal) Write(p []byte) (n int, err error) {
	if _, err = t.Out.Write(bytes.ReplaceAll(p, []byte("\r\n"), []byte("\n"))); err != nil {
		return
	}

	return len(p), nil
}
