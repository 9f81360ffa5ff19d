// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"go.chromium.org/featrun/errors"
)

// fileConfig is the schema of a YAML config file.
type fileConfig struct {
	Specs          []string               `yaml:"specs"`
	Cwd            string                 `yaml:"cwd"`
	Bundle         string                 `yaml:"bundle"`
	BundleArgs     string                 `yaml:"bundleArgs"`
	Framework      frameworkConfig        `yaml:"framework"`
	Capabilities   map[string]interface{} `yaml:"capabilities"`
	InvokeTimeout  duration               `yaml:"invokeTimeout"`
	DisposeTimeout duration               `yaml:"disposeTimeout"`
}

type frameworkConfig struct {
	Timeout  duration `yaml:"timeout"`
	Tags     []string `yaml:"tags"`
	FailFast bool     `yaml:"failFast"`
	Strict   bool     `yaml:"strict"`
}

// duration is written either as an integer number of milliseconds or as a
// Go duration string such as "1m30s".
type duration time.Duration

func (d *duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var ms int64
	if err := unmarshal(&ms); err == nil {
		*d = duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// readFile reads a YAML config file at path. Unknown keys are errors.
func readFile(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := yaml.UnmarshalStrict(b, &fc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	for k, v := range fc.Capabilities {
		cv, err := stringKeys(v)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: capability %q", path, k)
		}
		fc.Capabilities[k] = cv
	}
	return &fc, nil
}

// stringKeys converts the maps yaml.v2 decodes into maps with string keys,
// so that capabilities can be sent as JSON.
func stringKeys(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			ks, ok := k.(string)
			if !ok {
				return nil, errors.Errorf("non-string key %v", k)
			}
			ce, err := stringKeys(e)
			if err != nil {
				return nil, err
			}
			m[ks] = ce
		}
		return m, nil
	case []interface{}:
		s := make([]interface{}, len(v))
		for i, e := range v {
			ce, err := stringKeys(e)
			if err != nil {
				return nil, errors.Wrapf(err, "[%d]", i)
			}
			s[i] = ce
		}
		return s, nil
	default:
		return v, nil
	}
}
