// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil quotes and splits shell command lines.
package shutil

import (
	"strings"

	"go.chromium.org/featrun/errors"
)

// isSafe reports whether c needs no quoting. A leading '=' is unsafe in zsh.
func isSafe(c byte, leading bool) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '=':
		return !leading
	}
	return strings.IndexByte("-_@%+:,./", c) >= 0
}

// Escape quotes s for a POSIX shell command line, unless it is already safe
// as a single word.
func Escape(s string) string {
	safe := s != ""
	for i := 0; i < len(s) && safe; i++ {
		safe = isSafe(s[i], i == 0)
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// EscapeSlice escapes each of args and joins them into a command line.
func EscapeSlice(args []string) string {
	words := make([]string, 0, len(args))
	for _, a := range args {
		words = append(words, Escape(a))
	}
	return strings.Join(words, " ")
}

// Split splits a command line into arguments the way a POSIX shell would
// for single quotes, double quotes and backslash escapes. Expansions and
// operators are not interpreted.
func Split(s string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inArg := false
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case quote == '"':
			switch {
			case c == '"':
				quote = 0
			case c == '\\' && i+1 < len(s) && strings.IndexByte("$`\"\\\n", s[i+1]) >= 0:
				i++
				cur.WriteByte(s[i])
			default:
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inArg = true
		case c == '\\':
			if i+1 == len(s) {
				return nil, errors.Errorf("trailing backslash in %q", s)
			}
			i++
			cur.WriteByte(s[i])
			inArg = true
		case c == ' ' || c == '\t' || c == '\n':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteByte(c)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.Errorf("unterminated %c quote in %q", quote, s)
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
