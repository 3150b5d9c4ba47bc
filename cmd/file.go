// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf16"

	"github.com/dustin/go-humanize"

	"github.com/usbarmory/efi-loader/shell"
	"github.com/usbarmory/efi-loader/uefi"
)

// maxRead limits file contents shown on the console.
const maxRead = 4096

func init() {
	shell.Add(shell.Cmd{
		Name: "ls",
		Help: "list boot volume files",
		Fn:   lsCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "cat",
		Args:    1,
		Pattern: regexp.MustCompile(`^cat ([^\s\\/]+)$`),
		Syntax:  "<name>",
		Help:    "show file content",
		Fn:      catCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "write",
		Args:    2,
		Pattern: regexp.MustCompile(`^write ([^\s\\/]+) (.*)$`),
		Syntax:  "<name> <text>",
		Help:    "create file with text",
		Fn:      writeCmd,
	})
}

func root() (*uefi.File, error) {
	if Loader == nil || Loader.Root == nil {
		return nil, errors.New("boot volume not available")
	}

	return Loader.Root, nil
}

func checkName(name string) error {
	if n := len(utf16.Encode([]rune(name))); n >= uefi.MaxFileName {
		return fmt.Errorf("file name exceeds %d characters", uefi.MaxFileName-1)
	}

	return nil
}

func lsCmd(_ *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer

	r, err := root()

	if err != nil {
		return
	}

	if err = r.SetPosition(0); err != nil {
		return
	}

	entries, err := r.ReadDir(0)

	if err != nil {
		return
	}

	tw := tabwriter.NewWriter(&buf, 0, 8, 2, ' ', 0)

	for _, e := range entries {
		fi, err := e.Info()

		if err != nil {
			return "", err
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", fi.Mode(), humanize.IBytes(uint64(fi.Size())),
			fi.ModTime().Format(time.DateTime), fi.Name())
	}

	tw.Flush()

	return buf.String(), nil
}

func catCmd(_ *shell.Interface, arg []string) (res string, err error) {
	r, err := root()

	if err != nil {
		return
	}

	if err = checkName(arg[0]); err != nil {
		return
	}

	f, err := r.Open(arg[0], uefi.Read)

	if err != nil {
		return
	}

	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, maxRead))

	if err != nil {
		return
	}

	// the console only supports the Basic Multilingual Plane
	return strings.Map(func(r rune) rune {
		if r > 0xffff {
			return '?'
		}

		return r
	}, string(buf)), nil
}

func writeCmd(_ *shell.Interface, arg []string) (res string, err error) {
	r, err := root()

	if err != nil {
		return
	}

	if err = checkName(arg[0]); err != nil {
		return
	}

	f, err := r.Open(arg[0], uefi.CreateReadWrite)

	if err != nil {
		return
	}

	defer f.Close()

	n, err := io.WriteString(f, arg[1])

	if err != nil {
		return
	}

	if err = f.Flush(); err != nil {
		return
	}

	return fmt.Sprintf("%s written to %s", humanize.IBytes(uint64(n)), f.Name()), nil
}
