// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package engine

import (
	"bufio"
	"io"
	"os"
	"strings"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/event"
)

// Feature is a parsed feature file.
type Feature struct {
	URI        string
	Keyword    string
	Name       string
	Line       int
	Tags       []event.Tag
	Background *Scenario
	Scenarios  []*Scenario
}

// Scenario is a scenario, a scenario outline or a background.
type Scenario struct {
	Keyword  string
	Name     string
	Line     int
	Tags     []event.Tag
	Steps    []*Step
	Examples []*Examples // non-empty for scenario outlines only
	Outline  bool
}

// Step is a single step of a scenario.
type Step struct {
	Keyword   string
	Text      string
	Line      int
	DocString string
	Table     [][]string
}

// Examples is an examples table of a scenario outline.
type Examples struct {
	Name   string
	Line   int
	Tags   []event.Tag
	Header []string
	Rows   []*Row
}

// Row is a body row of an examples table.
type Row struct {
	Line  int
	Cells []string
}

var stepKeywords = []string{"Given ", "When ", "Then ", "And ", "But ", "* "}

// ParseFile parses the feature file at path. The path is used as the URI of
// the feature.
func ParseFile(path string) (*Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(path, f)
}

// parser holds the state of Parse between lines.
type parser struct {
	uri  string
	feat *Feature
	tags []event.Tag // tags waiting for the next feature, scenario or examples

	scen *Scenario // scenario or background receiving steps
	exs  *Examples // examples table receiving rows
	step *Step     // last step, receiving doc strings and tables

	docDelim  string // non-empty while inside a doc string
	doc       []string
	docIndent int
}

// Parse parses a feature file read from r. uri identifies the file in
// events and errors.
//
// The supported syntax is a subset of Gherkin: tags, Feature, Background,
// Scenario, Scenario Outline with Examples, steps, doc strings, data tables
// and comments. Rules and i18n keywords are not supported.
func Parse(uri string, r io.Reader) (*Feature, error) {
	p := &parser{uri: uri}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		if err := p.line(n, sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", uri)
	}
	if p.docDelim != "" {
		return nil, errors.Errorf("%s: unterminated doc string", uri)
	}
	if p.feat == nil {
		return nil, errors.Errorf("%s: no feature found", uri)
	}
	return p.feat, nil
}

func (p *parser) errorf(n int, format string, args ...interface{}) error {
	return errors.Errorf("%s:%d: "+format, append([]interface{}{p.uri, n}, args...)...)
}

func (p *parser) line(n int, raw string) error {
	s := strings.TrimSpace(raw)

	if p.docDelim != "" {
		if s == p.docDelim {
			p.step.DocString = strings.Join(p.doc, "\n")
			p.docDelim, p.doc = "", nil
			return nil
		}
		p.doc = append(p.doc, trimIndent(strings.TrimRight(raw, "\r"), p.docIndent))
		return nil
	}

	switch {
	case s == "" || strings.HasPrefix(s, "#"):
		return nil
	case strings.HasPrefix(s, "@"):
		return p.tagLine(n, s)
	case strings.HasPrefix(s, `"""`) || strings.HasPrefix(s, "```"):
		if p.step == nil {
			return p.errorf(n, "doc string outside of a step")
		}
		p.docDelim = s[:3]
		p.docIndent = len(raw) - len(strings.TrimLeft(raw, " \t"))
		return nil
	case strings.HasPrefix(s, "|"):
		return p.tableRow(n, s)
	}

	if kw, rest, ok := cutKeyword(s); ok {
		return p.header(n, kw, rest)
	}
	for _, kw := range stepKeywords {
		if strings.HasPrefix(s, kw) {
			if p.scen == nil {
				return p.errorf(n, "step outside of a scenario")
			}
			p.step = &Step{Keyword: kw, Text: strings.TrimSpace(s[len(kw):]), Line: n}
			p.scen.Steps = append(p.scen.Steps, p.step)
			return nil
		}
	}
	if p.feat == nil {
		return p.errorf(n, "expected Feature, got %q", s)
	}
	// Free-form description.
	return nil
}

func (p *parser) tagLine(n int, s string) error {
	for _, f := range strings.Fields(s) {
		if strings.HasPrefix(f, "#") {
			break
		}
		if !strings.HasPrefix(f, "@") || len(f) == 1 {
			return p.errorf(n, "bad tag %q", f)
		}
		p.tags = append(p.tags, event.Tag{Name: f, Line: n})
	}
	return nil
}

func (p *parser) header(n int, kw, name string) error {
	tags := p.tags
	p.tags = nil
	p.step = nil

	switch kw {
	case "Feature":
		if p.feat != nil {
			return p.errorf(n, "multiple features in a file")
		}
		p.feat = &Feature{URI: p.uri, Keyword: kw, Name: name, Line: n, Tags: tags}
		return nil
	}
	if p.feat == nil {
		return p.errorf(n, "%s before Feature", kw)
	}

	switch kw {
	case "Background":
		if p.feat.Background != nil {
			return p.errorf(n, "multiple backgrounds")
		}
		if len(p.feat.Scenarios) > 0 {
			return p.errorf(n, "background after scenarios")
		}
		p.scen = &Scenario{Keyword: kw, Name: name, Line: n}
		p.feat.Background = p.scen
		p.exs = nil
	case "Scenario", "Example":
		p.scen = &Scenario{Keyword: kw, Name: name, Line: n, Tags: tags}
		p.feat.Scenarios = append(p.feat.Scenarios, p.scen)
		p.exs = nil
	case "Scenario Outline", "Scenario Template":
		p.scen = &Scenario{Keyword: kw, Name: name, Line: n, Tags: tags, Outline: true}
		p.feat.Scenarios = append(p.feat.Scenarios, p.scen)
		p.exs = nil
	case "Examples", "Scenarios":
		if p.scen == nil || !p.scen.Outline {
			return p.errorf(n, "%s outside of a scenario outline", kw)
		}
		p.exs = &Examples{Name: name, Line: n, Tags: tags}
		p.scen.Examples = append(p.scen.Examples, p.exs)
	}
	return nil
}

func (p *parser) tableRow(n int, s string) error {
	cells, err := splitRow(s)
	if err != nil {
		return p.errorf(n, "%v", err)
	}
	if p.exs != nil {
		if p.exs.Header == nil {
			p.exs.Header = cells
			return nil
		}
		if len(cells) != len(p.exs.Header) {
			return p.errorf(n, "row has %d cells; header has %d", len(cells), len(p.exs.Header))
		}
		p.exs.Rows = append(p.exs.Rows, &Row{Line: n, Cells: cells})
		return nil
	}
	if p.step == nil {
		return p.errorf(n, "table outside of a step")
	}
	p.step.Table = append(p.step.Table, cells)
	return nil
}

var headerKeywords = []string{
	"Feature", "Background", "Scenario Outline", "Scenario Template",
	"Scenario", "Example", "Examples", "Scenarios",
}

// cutKeyword splits a header line such as "Scenario: foo" into its keyword
// and name.
func cutKeyword(s string) (kw, name string, ok bool) {
	for _, kw := range headerKeywords {
		if strings.HasPrefix(s, kw+":") {
			return kw, strings.TrimSpace(s[len(kw)+1:]), true
		}
	}
	return "", "", false
}

// splitRow splits a table row into trimmed cells. "\|" escapes a pipe.
func splitRow(s string) ([]string, error) {
	if !strings.HasSuffix(s, "|") || len(s) < 2 {
		return nil, errors.New("table row must end with |")
	}
	s = s[1 : len(s)-1]
	var cells []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && (s[i+1] == '|' || s[i+1] == '\\'):
			cur.WriteByte(s[i+1])
			i++
		case s[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	return append(cells, strings.TrimSpace(cur.String())), nil
}

// trimIndent removes up to n leading whitespace characters from s.
func trimIndent(s string, n int) string {
	i := 0
	for i < n && i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[i:]
}
