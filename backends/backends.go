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

package backends

import (
	"fmt"
	"io"
	"strings"

	"github.com/nuclio/logger"
	"github.com/pkg/errors"

	"github.com/v3io/cubes"
)

// Backend reads datasets to frames and writes frames back out
type Backend interface {
	// Read loads the dataset described by source
	Read(source *cubes.SourceConfig) (cubes.Frame, error)
	// Write writes frame to w in the backend format
	Write(w io.Writer, frame cubes.Frame) error
}

// Factory is a backend factory
type Factory func(logger.Logger) (Backend, error)

var factories = NewRegistry(strings.ToLower)

// Register registers a backend factory for a type
func Register(typ string, factory Factory) error {
	if err := factories.Register(typ, factory); err != nil {
		return errors.Wrap(err, "can't register backend")
	}

	return nil
}

// GetFactory returns factory for a backend, nil if not found
func GetFactory(typ string) Factory {
	factory, ok := factories.Get(typ).(Factory)
	if !ok {
		return nil
	}

	return factory
}

// Types returns the registered backend types
func Types() []string {
	return factories.Names()
}

// New returns a new backend of type typ
func New(logger logger.Logger, typ string) (Backend, error) {
	factory := GetFactory(typ)
	if factory == nil {
		return nil, fmt.Errorf("unknown backend - %q (known: %s)", typ, strings.Join(Types(), ", "))
	}

	backend, err := factory(logger)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create %s backend", typ)
	}

	return backend, nil
}

// Load reads the dataset described by source with the matching backend
func Load(logger logger.Logger, source *cubes.SourceConfig) (cubes.Frame, error) {
	if source == nil || source.Path == "" {
		return nil, fmt.Errorf("no source path")
	}

	backend, err := New(logger, source.Type)
	if err != nil {
		return nil, err
	}

	frame, err := backend.Read(source)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read %s", source.Path)
	}

	logger.InfoWith("Loaded source",
		"type", source.Type,
		"path", source.Path,
		"rows", frame.Len(),
		"columns", frame.Names())

	return frame, nil
}
