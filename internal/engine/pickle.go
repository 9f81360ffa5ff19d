// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package engine

import (
	"strings"

	"go.chromium.org/featrun/internal/event"
)

// Pickle is an executable scenario. Scenario outlines expand to one Pickle
// per examples row.
type Pickle struct {
	URI     string
	Keyword string
	Name    string
	// Line is the line the scenario is declared at.
	Line int
	// SourceLine is the line the pickle was generated from: the examples row
	// for outlines, Line otherwise.
	SourceLine int
	// Tags contains the feature, scenario and examples tags in that order.
	Tags  []event.Tag
	Steps []*Step
}

// TagNames returns the names of p's tags.
func (p *Pickle) TagNames() []string {
	names := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		names[i] = t.Name
	}
	return names
}

// Pickles expands f into executable scenarios in file order. Background
// steps are prepended to every scenario.
func Pickles(f *Feature) []*Pickle {
	var bg []*Step
	if f.Background != nil {
		bg = f.Background.Steps
	}

	var ps []*Pickle
	for _, sc := range f.Scenarios {
		tags := append(append([]event.Tag(nil), f.Tags...), sc.Tags...)
		if !sc.Outline {
			ps = append(ps, &Pickle{
				URI:        f.URI,
				Keyword:    sc.Keyword,
				Name:       sc.Name,
				Line:       sc.Line,
				SourceLine: sc.Line,
				Tags:       tags,
				Steps:      append(append([]*Step(nil), bg...), sc.Steps...),
			})
			continue
		}
		for _, ex := range sc.Examples {
			for _, row := range ex.Rows {
				vals := make(map[string]string, len(ex.Header))
				for i, h := range ex.Header {
					vals[h] = row.Cells[i]
				}
				steps := append([]*Step(nil), bg...)
				for _, st := range sc.Steps {
					steps = append(steps, substituteStep(st, vals))
				}
				ps = append(ps, &Pickle{
					URI:        f.URI,
					Keyword:    sc.Keyword,
					Name:       substitute(sc.Name, vals),
					Line:       sc.Line,
					SourceLine: row.Line,
					Tags:       append(append([]event.Tag(nil), tags...), ex.Tags...),
					Steps:      steps,
				})
			}
		}
	}
	return ps
}

func substituteStep(st *Step, vals map[string]string) *Step {
	out := &Step{
		Keyword:   st.Keyword,
		Text:      substitute(st.Text, vals),
		Line:      st.Line,
		DocString: substitute(st.DocString, vals),
	}
	for _, row := range st.Table {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = substitute(c, vals)
		}
		out.Table = append(out.Table, cells)
	}
	return out
}

// substitute replaces "<name>" placeholders in s with values from vals.
// Unknown placeholders are left as they are.
func substitute(s string, vals map[string]string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var sb strings.Builder
	for {
		i := strings.IndexByte(s, '<')
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i:], '>')
		if j < 0 {
			break
		}
		sb.WriteString(s[:i])
		if v, ok := vals[s[i+1:i+j]]; ok {
			sb.WriteString(v)
		} else {
			sb.WriteString(s[i : i+j+1])
		}
		s = s[i+j+1:]
	}
	sb.WriteString(s)
	return sb.String()
}
