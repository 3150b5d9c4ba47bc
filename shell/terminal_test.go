// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package shell

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
)

type conn struct {
	io.Reader
	bytes.Buffer
}

func (c *conn) Read(p []byte) (int, error) {
	return c.Reader.Read(p)
}

func init() {
	Add(Cmd{
		Name:    "echo",
		Args:    1,
		Pattern: regexp.MustCompile(`^echo (.+)$`),
		Syntax:  "<text>",
		Help:    "print text",
		Fn: func(_ *Interface, arg []string) (string, error) {
			return arg[0], nil
		},
	})

	Add(Cmd{
		Name: "fail",
		Help: "return an error",
		Fn: func(_ *Interface, _ []string) (string, error) {
			return "", errors.New("failure")
		},
	})

	Add(Cmd{
		Name: "bye",
		Help: "close session",
		Fn: func(_ *Interface, _ []string) (string, error) {
			return "", io.EOF
		},
	})
}

func TestFind(t *testing.T) {
	cmd, arg := Find("echo hello world")

	if cmd == nil || cmd.Name != "echo" {
		t.Fatal("command not found")
	}

	if len(arg) != 1 || arg[0] != "hello world" {
		t.Fatalf("unexpected arguments %q", arg)
	}

	if cmd, _ = Find("echo"); cmd != nil {
		t.Fatal("unexpected match without arguments")
	}
}

func TestHandleLine(t *testing.T) {
	var buf bytes.Buffer

	iface := &Interface{}

	if err := iface.handleLine("echo ok", &buf); err != nil {
		t.Fatal(err)
	}

	if buf.String() != "ok\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}

	if err := iface.handleLine("nope", &buf); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestStart(t *testing.T) {
	c := &conn{Reader: strings.NewReader("echo one\rfail\rnope\rbye\recho two\r")}

	iface := &Interface{
		Banner:     "test shell",
		ReadWriter: c,
	}

	iface.Start()

	out := c.String()

	for _, s := range []string{
		"test shell",
		"echo",
		"# print text",
		"one",
		"command error, failure",
		"unknown command",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output is missing %q:\n%s", s, out)
		}
	}

	if strings.Contains(out, "two") {
		t.Fatal("command executed after session end")
	}
}
