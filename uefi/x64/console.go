// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

package x64

import (
	_ "unsafe"
)

// printk bypasses console.Writer: runtime output, panics included, can be
// emitted before the writer exists or while its lock is held by the
// panicking goroutine, taking the lock here would deadlock.
//
//go:linkname printk runtime.printk
func printk(c byte) {
	UART0.Tx(c)

	if UEFI.Console == nil {
		return
	}

	// runtime output is byte oriented, multi-byte sequences cannot be
	// transcoded
	if c >= 0x80 {
		c = '?'
	}

	UEFI.Console.OutputString([]uint16{uint16(c), 0})

	if c == 0x0a { // LF
		UEFI.Console.OutputString([]uint16{0x0d, 0}) // CR
	}
}
