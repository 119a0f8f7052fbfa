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
	"testing"

	"github.com/nuclio/logger"
	"github.com/stretchr/testify/suite"

	"github.com/v3io/cubes"
)

type BackendsTestSuite struct {
	suite.Suite
}

// Special error return from testFactory so we can see it's this function
var errorBackendsTest = fmt.Errorf("backends test")

func testFactory(logger.Logger) (Backend, error) {
	return nil, errorBackendsTest
}

type staticBackend struct {
	frame cubes.Frame
}

func (b *staticBackend) Read(*cubes.SourceConfig) (cubes.Frame, error) { return b.frame, nil }
func (b *staticBackend) Write(io.Writer, cubes.Frame) error { return nil }

func (suite *BackendsTestSuite) TestBackends() {
	typ := "testBackend"
	err := Register(typ, testFactory)
	suite.Require().NoError(err)

	err = Register(typ, testFactory)
	suite.Require().Error(err)

	capsType := strings.ToUpper(typ)
	factory := GetFactory(capsType)
	suite.Require().NotNil(factory)

	_, err = factory(nil)
	suite.Require().Equal(errorBackendsTest, err)

	suite.Require().Contains(Types(), strings.ToLower(typ))
}

func (suite *BackendsTestSuite) TestUnknownBackend() {
	suite.Require().Nil(GetFactory("no-such-backend"))

	_, err := New(nil, "no-such-backend")
	suite.Require().Error(err)
}

func (suite *BackendsTestSuite) TestLoad() {
	testLogger, err := cubes.NewLogger("debug")
	suite.Require().NoError(err)

	frame, err := cubes.NewFrameFromMap(map[string]interface{}{
		"product": []string{"Apple", "Pear"},
		"revenue": []float64{1, 2},
	}, nil)
	suite.Require().NoError(err)

	err = Register("static", func(logger.Logger) (Backend, error) {
		return &staticBackend{frame: frame}, nil
	})
	suite.Require().NoError(err)

	loaded, err := Load(testLogger, &cubes.SourceConfig{Type: "static", Path: "ignored"})
	suite.Require().NoError(err)
	suite.Require().Equal(2, loaded.Len())

	_, err = Load(testLogger, &cubes.SourceConfig{Type: "static"})
	suite.Require().Error(err, "no path")
}

func TestBackendsTestSuite(t *testing.T) {
	suite.Run(t, new(BackendsTestSuite))
}
