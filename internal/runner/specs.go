// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package runner

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/exp/slices"

	"go.chromium.org/featrun/errors"
)

const globChars = "*?[{"

// ResolveSpecFiles expands specs into absolute feature file paths. Relative
// specs are resolved against cwd, or the working directory if cwd is empty. A spec containing glob characters is expanded with
// doublestar semantics ("**" matches any number of directories) and
// contributes its matches in lexical order, possibly none. Other specs are
// kept as they are, whether or not they exist. The order of specs and
// duplicates are preserved.
func ResolveSpecFiles(specs []string, cwd string) ([]string, error) {
	var paths []string
	for _, s := range specs {
		p, err := absPath(s, cwd)
		if err != nil {
			return nil, err
		}
		if !strings.ContainsAny(s, globChars) {
			paths = append(paths, p)
			continue
		}
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, errors.Wrapf(err, "bad spec pattern %q", s)
		}
		slices.Sort(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}

func absPath(p, cwd string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	if cwd != "" {
		p = filepath.Join(cwd, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %q", p)
	}
	return abs, nil
}
