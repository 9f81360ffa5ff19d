// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package engine

import (
	"strings"

	"go.chromium.org/featrun/errors"
)

type tagTerm struct {
	tag    string
	negate bool
}

// TagFilter selects pickles by their tags.
//
// A filter is a conjunction of expressions. Each expression is a conjunction
// of terms joined by "and", where a term is a tag optionally preceded by
// "not", e.g. "@smoke and not @slow".
type TagFilter struct {
	terms []tagTerm
}

// NewTagFilter compiles exprs. An empty filter matches everything.
func NewTagFilter(exprs []string) (*TagFilter, error) {
	f := &TagFilter{}
	for _, e := range exprs {
		if strings.TrimSpace(e) == "" {
			continue
		}
		for _, part := range strings.Split(e, " and ") {
			fields := strings.Fields(part)
			var t tagTerm
			switch {
			case len(fields) == 1:
				t.tag = fields[0]
			case len(fields) == 2 && fields[0] == "not":
				t = tagTerm{tag: fields[1], negate: true}
			default:
				return nil, errors.Errorf("bad tag expression %q", e)
			}
			if !strings.HasPrefix(t.tag, "@") || len(t.tag) == 1 {
				return nil, errors.Errorf("bad tag %q in %q", t.tag, e)
			}
			f.terms = append(f.terms, t)
		}
	}
	return f, nil
}

// Match reports whether tags satisfy f.
func (f *TagFilter) Match(tags []string) bool {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	for _, t := range f.terms {
		if _, ok := set[t.tag]; ok == t.negate {
			return false
		}
	}
	return true
}
