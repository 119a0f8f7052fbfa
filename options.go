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

	"github.com/nuclio/logger"
	"github.com/pkg/errors"
)

type cubeOptions struct {
	schema           *SchemaDefinition
	exclude          []string
	logger           logger.Logger
	fuzzy            bool
	readOnly         bool
	strictDelete     bool
	listDelimiter    string
	dateResolver     DateResolver
	expressionParser ExpressionParser
}

// Option is a cube option
type Option func(*cubeOptions) error

// WithConfig applies the cube and log sections of cfg
func WithConfig(cfg *Config) Option {
	return func(opts *cubeOptions) error {
		if cfg == nil {
			return fmt.Errorf("nil configuration")
		}

		if err := cfg.InitDefaults(); err != nil {
			return errors.Wrap(err, "failed to init defaults")
		}

		if err := cfg.Validate(); err != nil {
			return errors.Wrap(err, "bad configuration")
		}

		if opts.logger == nil {
			log, err := NewLogger(cfg.Log.Level)
			if err != nil {
				return errors.Wrap(err, "can't create logger")
			}
			opts.logger = log
		}

		opts.schema = cfg.Cube.Schema
		opts.exclude = cfg.Cube.Exclude
		opts.fuzzy = cfg.Cube.Fuzzy
		opts.readOnly = cfg.Cube.ReadOnly
		opts.strictDelete = cfg.Cube.StrictDelete
		opts.listDelimiter = cfg.Cube.ListDelimiter
		return nil
	}
}

// WithSchema sets an explicit schema
func WithSchema(def *SchemaDefinition) Option {
	return func(opts *cubeOptions) error {
		opts.schema = def
		return nil
	}
}

// WithExclude excludes columns from schema inference
func WithExclude(columns ...string) Option {
	return func(opts *cubeOptions) error {
		opts.exclude = append(opts.exclude, columns...)
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(opts *cubeOptions) error {
		opts.logger = log
		return nil
	}
}

// WithFuzzy turns on case-insensitive glob matching of members
func WithFuzzy(fuzzy bool) Option {
	return func(opts *cubeOptions) error {
		opts.fuzzy = fuzzy
		return nil
	}
}

// WithReadOnly rejects all writes
func WithReadOnly(readOnly bool) Option {
	return func(opts *cubeOptions) error {
		opts.readOnly = readOnly
		return nil
	}
}

// WithStrictDelete makes deleting zero rows an error
func WithStrictDelete(strict bool) Option {
	return func(opts *cubeOptions) error {
		opts.strictDelete = strict
		return nil
	}
}

// WithListDelimiter sets the separator of "A, B" member lists, empty turns
// lists off
func WithListDelimiter(delimiter string) Option {
	return func(opts *cubeOptions) error {
		switch delimiter {
		case ":", "*", "?":
			return fmt.Errorf("list delimiter %q clashes with address syntax", delimiter)
		}

		opts.listDelimiter = delimiter
		return nil
	}
}

// WithDateResolver sets the natural language date resolver, nil turns date
// resolution off
func WithDateResolver(resolver DateResolver) Option {
	return func(opts *cubeOptions) error {
		opts.dateResolver = resolver
		return nil
	}
}

// WithExpressionParser sets the expression parser, nil turns expressions off
func WithExpressionParser(parser ExpressionParser) Option {
	return func(opts *cubeOptions) error {
		opts.expressionParser = parser
		return nil
	}
}
