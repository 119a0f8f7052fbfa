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

package http

import (
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/v3io/cubes"
)

type ServerTestSuite struct {
	suite.Suite

	server *Server
	client *Client
	ln     *fasthttputil.InmemoryListener
}

func (suite *ServerTestSuite) SetupTest() {
	logger, err := cubes.NewLogger("debug")
	suite.Require().NoError(err)

	frame, err := cubes.NewFrameFromMap(map[string]interface{}{
		"product": []string{"Apple", "Pear", "Banana", "Apple", "Pear", "Banana"},
		"channel": []string{"Online", "Online", "Online", "Retail", "Retail", "Retail"},
		"revenue": []int64{100, 150, 300, 200, 250, 350},
		"cost":    []int64{50, 100, 200, 100, 150, 150},
	}, []string{"product", "channel", "revenue", "cost"})
	suite.Require().NoError(err)

	cube, err := cubes.New(frame, cubes.WithLogger(logger))
	suite.Require().NoError(err)

	config := &cubes.Config{}
	suite.server, err = NewServer(config, cube, logger)
	suite.Require().NoError(err)

	suite.ln = fasthttputil.NewInmemoryListener()
	suite.Require().NoError(suite.server.Serve(suite.ln))

	suite.client, err = NewClient("http://cubes", logger)
	suite.Require().NoError(err)
	suite.client.SetDialer(func(string) (net.Conn, error) {
		return suite.ln.Dial()
	})
}

func (suite *ServerTestSuite) TearDownTest() {
	suite.Require().NoError(suite.server.Stop())
}

func (suite *ServerTestSuite) TestValue() {
	reply, err := suite.client.Value(&Request{Address: []interface{}{"Online"}})
	suite.Require().NoError(err)
	suite.Require().NotNil(reply.Value)
	suite.Require().Equal(550.0, *reply.Value)
	suite.Require().Equal(3, reply.Rows)
	suite.Require().Equal("revenue", reply.Measure)

	reply, err = suite.client.Value(&Request{
		Address:     []interface{}{map[string]interface{}{"product": "Apple"}},
		Measure:     "cost",
		Aggregation: "avg",
	})
	suite.Require().NoError(err)
	suite.Require().Equal(75.0, *reply.Value)
}

func (suite *ServerTestSuite) TestValues() {
	reply, err := suite.client.Values(&Request{
		Address: []interface{}{"Online"},
		Addresses: [][]interface{}{
			{"Apple"},
			{"Pear", "cost"},
			{"revenue > 1000"},
			{},
		},
		Aggregation: "avg",
	})
	suite.Require().NoError(err)
	suite.Require().Equal("avg", reply.Aggregation)
	suite.Require().Len(reply.Values, 4)
	suite.Require().Equal(100.0, *reply.Values[0])
	suite.Require().Equal(100.0, *reply.Values[1])
	suite.Require().Nil(reply.Values[2])
	suite.Require().InDelta(550.0/3, *reply.Values[3], 1e-9)

	_, err = suite.client.Values(&Request{Addresses: [][]interface{}{{"Apple"}, {"Cherry"}}})
	suite.Require().Error(err)
	statusErr, ok := err.(*StatusError)
	suite.Require().True(ok)
	suite.Require().Equal(http.StatusBadRequest, statusErr.StatusCode)
}

func (suite *ServerTestSuite) TestRows() {
	frame, err := suite.client.Rows(&Request{Address: []interface{}{[]interface{}{"Apple", "Banana"}, "Online"}})
	suite.Require().NoError(err)
	suite.Require().Equal(2, frame.Len())
}

func (suite *ServerTestSuite) TestWrites() {
	reply, err := suite.client.Set(&Request{Address: []interface{}{"Apple"}, Value: 10})
	suite.Require().NoError(err)
	suite.Require().Equal(20.0, *reply.Value)

	reply, err = suite.client.Update(&Request{Address: []interface{}{"Apple"}, Operator: "*", Value: 3})
	suite.Require().NoError(err)
	suite.Require().Equal(60.0, *reply.Value)

	reply, err = suite.client.Delete(&Request{Address: []interface{}{"Retail"}})
	suite.Require().NoError(err)
	suite.Require().Equal(0, reply.Rows)

	reply, err = suite.client.Value(&Request{})
	suite.Require().NoError(err)
	suite.Require().Equal(30.0+150+300, *reply.Value)
}

func (suite *ServerTestSuite) TestErrors() {
	_, err := suite.client.Value(&Request{Address: []interface{}{"Cherry"}})
	suite.Require().Error(err)
	statusErr, ok := err.(*StatusError)
	suite.Require().True(ok)
	suite.Require().Equal(http.StatusBadRequest, statusErr.StatusCode)

	_, err = suite.client.Set(&Request{Address: []interface{}{"revenue > 1000"}, Value: 1})
	suite.Require().Error(err)
	statusErr, ok = err.(*StatusError)
	suite.Require().True(ok)
	suite.Require().Equal(http.StatusNotImplemented, statusErr.StatusCode)
}

func (suite *ServerTestSuite) TestSchema() {
	reply, err := suite.client.Schema()
	suite.Require().NoError(err)
	suite.Require().Equal(6, reply.Rows)
	suite.Require().Len(reply.Dimensions, 2)
	suite.Require().Len(reply.Measures, 2)
	suite.Require().Equal("revenue", reply.Measures[0].Name)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
