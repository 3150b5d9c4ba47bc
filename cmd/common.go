// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package cmd implements the diagnostic shell commands.
package cmd

import (
	"fmt"
	"io"
	"regexp"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/hako/durafmt"

	"github.com/usbarmory/efi-loader/loader"
	"github.com/usbarmory/efi-loader/shell"
)

// Banner represents the shell welcome message.
var Banner string

// Loader represents the booted loader state used by commands.
var Loader *loader.Loader

func init() {
	Banner = fmt.Sprintf("%s/%s (%s) • UEFI",
		runtime.GOOS, runtime.GOARCH, runtime.Version())

	shell.Add(shell.Cmd{
		Name: "build",
		Help: "build information",
		Fn:   buildInfoCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "exit, quit",
		Args:    1,
		Pattern: regexp.MustCompile(`^(exit|quit)$`),
		Help:    "close session",
		Fn:      exitCmd,
	})

	shell.Add(shell.Cmd{
		Name: "date",
		Help: "show runtime date and time",
		Fn:   dateCmd,
	})

	shell.Add(shell.Cmd{
		Name: "uptime",
		Help: "show how long the loader has been running",
		Fn:   uptimeCmd,
	})
}

// StartTerminal starts the diagnostic shell over the argument connection,
// it returns when the session is closed.
func StartTerminal(rw io.ReadWriter) {
	iface := &shell.Interface{
		Banner:     Banner,
		ReadWriter: rw,
	}

	if Loader != nil {
		iface.Log = Loader.Log
	}

	iface.Start()
}

func buildInfoCmd(_ *shell.Interface, _ []string) (string, error) {
	if bi, ok := debug.ReadBuildInfo(); ok {
		return bi.String(), nil
	}

	return "", nil
}

func exitCmd(_ *shell.Interface, _ []string) (string, error) {
	return fmt.Sprintf("Goodbye from %s/%s", runtime.GOOS, runtime.GOARCH), io.EOF
}

func dateCmd(_ *shell.Interface, _ []string) (string, error) {
	return time.Now().Format(time.RFC3339), nil
}

func uptimeCmd(_ *shell.Interface, _ []string) (string, error) {
	if Loader == nil {
		return "", errNotBooted
	}

	return durafmt.Parse(time.Since(Loader.Started)).LimitFirstN(3).String(), nil
}
