// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package console_test

import (
	"io"
	"testing"

	"github.com/usbarmory/efi-loader/console"
	"github.com/usbarmory/efi-loader/uefi"
	"github.com/usbarmory/efi-loader/uefi/uefitest"
)

func newTerminal(t *testing.T) (*uefitest.Machine, *console.Terminal) {
	t.Helper()

	m := uefitest.NewMachine()
	s := &uefi.Services{Platform: m}

	if err := s.Init(m.ImageHandle, m.SystemTable); err != nil {
		t.Fatal(err)
	}

	return m, &console.Terminal{
		Out: console.NewWriter(s.Console),
		In:  s.Input,
	}
}

func TestTerminalWrite(t *testing.T) {
	m, term := newTerminal(t)

	if n, err := io.WriteString(term, "one\r\ntwo\n"); n != 9 || err != nil {
		t.Fatalf("unexpected write %d %v", n, err)
	}

	if m.Text() != "one\r\ntwo\r\n" {
		t.Fatalf("unexpected output %q", m.Text())
	}
}

func TestTerminalRead(t *testing.T) {
	m, term := newTerminal(t)

	m.Type("é")
	m.Keys = append(m.Keys, uefi.InputKey{ScanCode: 0x01})

	buf := make([]byte, 1)
	var got []byte

	for range 5 {
		n, err := term.Read(buf)

		if err != nil {
			t.Fatal(err)
		}

		got = append(got, buf[:n]...)
	}

	if string(got) != "é\x1b[A" {
		t.Fatalf("unexpected input %q", got)
	}
}
