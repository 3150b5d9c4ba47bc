// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package loader

import (
	"io"

	"github.com/rs/zerolog"
)

// NewLogger returns a structured logger writing human readable lines to w,
// UEFI consoles lack ANSI color support.
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "15:04:05",
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
