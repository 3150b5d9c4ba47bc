// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

package x64

import (
	"errors"
	"fmt"

	"github.com/usbarmory/tamago/dma"
)

// maxArgs is the number of arguments supported by callService.
const maxArgs = 5

// defined in x64.s
func callService(fn, a1, a2, a3, a4, a5 uint64) (status uint64)

type platform struct{}

// Native represents the firmware boundary of the running UEFI application,
// services are invoked following the Microsoft x64 calling convention.
var Native = &platform{}

// Call implements [uefi.Platform.Call].
func (p *platform) Call(fn uint64, args ...uint64) (status uint64) {
	var a [maxArgs]uint64

	if len(args) > maxArgs {
		panic(fmt.Sprintf("unsupported number of arguments (%d)", len(args)))
	}

	copy(a[:], args)

	return callService(fn, a[0], a[1], a[2], a[3], a[4])
}

// Read implements [uefi.Platform.Read].
func (p *platform) Read(addr uint64, buf []byte) (err error) {
	if addr == 0 {
		return errors.New("invalid address")
	}

	if len(buf) == 0 {
		return
	}

	r, err := dma.NewRegion(uint(addr), len(buf), true)

	if err != nil {
		return
	}

	ptr, b := r.Reserve(len(buf), 0)
	defer r.Release(ptr)

	copy(buf, b)

	return
}
