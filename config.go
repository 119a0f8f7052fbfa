/*
Copyright 2018 Iguazio Systems Ltd.

Licensed under the Apache License, Version 2.0 (the "License") with
an addition restriction as set forth herein. You may not use this
file except in compliance with the License. You may obtain a copy of
the License at http://www.apache.org/licenses/LICENSE-2.0.

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
implied. See the License for the specific language governing
permissions and limitations under the License.

In addition, you may not use the software for any purposes that are
illegal under applicable law, and the grant of the foregoing license
under the Apache 2.0 license is conditioned upon your compliance with
such restriction.
*/

package cubes

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

const (
	defaultLogLevel      = "info"
	defaultListDelimiter = ","
	defaultHTTPAddress   = ":8080"
	defaultHTTPWorkers   = 8
)

// LogConfig is the logging configuration
type LogConfig struct {
	Level string `json:"level,omitempty"`
}

// CubeConfig is the cube behaviour configuration
type CubeConfig struct {
	// Case-insensitive and glob (*, ?) member matching
	Fuzzy bool `json:"fuzzy,omitempty"`
	// Reject all writes
	ReadOnly bool `json:"readOnly,omitempty"`
	// Deleting zero rows is an error
	StrictDelete bool `json:"strictDelete,omitempty"`
	// Separator for "A, B" member lists
	ListDelimiter string `json:"listDelimiter,omitempty"`
	// Columns excluded from schema inference
	Exclude []string `json:"exclude,omitempty"`
	// Explicit schema, inferred when nil
	Schema *SchemaDefinition `json:"schema,omitempty"`
}

// SourceConfig is the dataset source
type SourceConfig struct {
	Type      string `json:"type,omitempty"` // csv, json
	Path      string `json:"path"`
	Delimiter string `json:"delimiter,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// HTTPConfig is the HTTP server configuration
type HTTPConfig struct {
	Address string `json:"address,omitempty"`
	// Workers evaluating batch requests
	Workers int `json:"workers,omitempty"`
}

// Config is cube configuration
type Config struct {
	Log    LogConfig    `json:"log"`
	Cube   CubeConfig   `json:"cube"`
	Source SourceConfig `json:"source"`
	HTTP   HTTPConfig   `json:"http"`
}

// NewConfigFromContentsOrPath parses configuration from contents, or from the
// file at path when contents is empty. TOML is used for .toml paths, YAML (or
// JSON) otherwise.
func NewConfigFromContentsOrPath(contents []byte, path string) (*Config, error) {
	if len(contents) == 0 {
		if path == "" {
			return nil, fmt.Errorf("no configuration contents or path")
		}

		var err error
		contents, err = ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "can't read configuration from %q", path)
		}
	}

	cfg := &Config{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(contents), cfg); err != nil {
			return nil, errors.Wrap(err, "can't decode TOML configuration")
		}
	} else if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, errors.Wrap(err, "can't decode YAML configuration")
	}

	if err := cfg.InitDefaults(); err != nil {
		return nil, errors.Wrap(err, "failed to init defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "bad configuration")
	}

	return cfg, nil
}

// InitDefaults initializes the defaults for configuration
func (c *Config) InitDefaults() error {
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}

	if c.Cube.ListDelimiter == "" {
		c.Cube.ListDelimiter = defaultListDelimiter
	}

	if c.HTTP.Address == "" {
		c.HTTP.Address = defaultHTTPAddress
	}

	if c.HTTP.Workers == 0 {
		c.HTTP.Workers = defaultHTTPWorkers
	}

	if c.Source.Type == "" && c.Source.Path != "" {
		c.Source.Type = strings.TrimPrefix(strings.ToLower(filepath.Ext(c.Source.Path)), ".")
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := logLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Cube.ListDelimiter {
	case ":", "*", "?":
		return fmt.Errorf("list delimiter %q clashes with address syntax", c.Cube.ListDelimiter)
	}

	if c.HTTP.Workers < 0 {
		return fmt.Errorf("negative number of HTTP workers - %d", c.HTTP.Workers)
	}

	if c.Source.Limit < 0 {
		return fmt.Errorf("negative source limit - %d", c.Source.Limit)
	}

	if c.Cube.Schema != nil {
		if err := c.Cube.Schema.Validate(); err != nil {
			return errors.Wrap(err, "bad schema definition")
		}
	}

	return nil
}
