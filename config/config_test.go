// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package config

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const testConfig = `
banner = "efi-loader"
log_file = "loader.log"
log_level = "debug"
memory_map_size = 0
shell = true
exit = true

[demo]
name = "demo.txt"
text = "Hello, world!"
`

func TestDefault(t *testing.T) {
	c := Default()

	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}

	if c.Demo.Name != "test" || c.Demo.Text != "hoge" {
		t.Fatalf("unexpected demo file %+v", c.Demo)
	}

	if c.Shell || c.Exit || c.LogFile != "" {
		t.Fatal("unexpected optional features enabled")
	}
}

func TestLoad(t *testing.T) {
	c, err := Load(strings.NewReader(testConfig))

	if err != nil {
		t.Fatal(err)
	}

	if c.Banner != "efi-loader" || !c.Shell || !c.Exit {
		t.Fatalf("unexpected configuration %+v", c)
	}

	if c.Level() != zerolog.DebugLevel {
		t.Fatalf("unexpected level %v", c.Level())
	}

	if c.Demo.Name != "demo.txt" || c.Demo.Text != "Hello, world!" {
		t.Fatalf("unexpected demo file %+v", c.Demo)
	}

	// defaults are retained
	if c.MemoryMapFile != "memmap.txt" {
		t.Fatalf("unexpected memory map file %q", c.MemoryMapFile)
	}

	if c.MemoryMapSize != 0 {
		t.Fatalf("unexpected memory map size %d", c.MemoryMapSize)
	}
}

func TestLoadInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{"syntax", `banner = `},
		{"unknown key", `color = true`},
		{"long name", `[demo]` + "\n" + `name = "` + strings.Repeat("a", 32) + `"`},
		{"path", `log_file = "\\efi\\boot\\loader.log"`},
		{"empty name", `[demo]` + "\n" + `name = ""`},
		{"level", `log_level = "loud"`},
		{"size", `memory_map_size = -1`},
		{"banner", `banner = "🙂"`},
	} {
		if _, err := Load(strings.NewReader(tc.data)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestLoadNameLimit(t *testing.T) {
	name := strings.Repeat("a", 31)

	c, err := Load(strings.NewReader(`log_file = "` + name + `"`))

	if err != nil {
		t.Fatal(err)
	}

	if c.LogFile != name {
		t.Fatalf("unexpected log file %q", c.LogFile)
	}
}
