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
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	neturl "net/url"
	"os"
	"time"

	"github.com/nuclio/logger"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/v3io/cubes"
)

// Client is a cube server HTTP client
type Client struct {
	url        *neturl.URL
	logger     logger.Logger
	httpClient *fasthttp.Client
	timeout    time.Duration
}

// NewClient returns a new HTTP client, url defaults to $CUBES_URL
func NewClient(url string, logger logger.Logger) (*Client, error) {
	var err error
	if logger == nil {
		logger, err = cubes.NewLogger("info")
		if err != nil {
			return nil, errors.Wrap(err, "can't create logger")
		}
	}

	if url == "" {
		url = os.Getenv("CUBES_URL")
	}

	if url == "" {
		return nil, fmt.Errorf("empty URL")
	}

	netURL, err := neturl.Parse(url)
	if err != nil {
		return nil, fmt.Errorf("bad URL - %s", err)
	}

	if netURL.Scheme == "" {
		netURL.Scheme = "http"
	}

	client := &Client{
		url:        netURL,
		logger:     logger,
		httpClient: &fasthttp.Client{},
		timeout:    30 * time.Second,
	}

	return client, nil
}

// SetDialer sets the client connection dialer
func (c *Client) SetDialer(dial func(addr string) (net.Conn, error)) {
	c.httpClient.Dial = dial
}

// Value returns the value at address
func (c *Client) Value(request *Request) (*ValueReply, error) {
	reply := &ValueReply{}
	if err := c.jsonCall("/value", request, reply); err != nil {
		return nil, err
	}

	return reply, nil
}

// Values evaluates request.Addresses, relative to request.Address, in one call
func (c *Client) Values(request *Request) (*ValuesReply, error) {
	reply := &ValuesReply{}
	if err := c.jsonCall("/values", request, reply); err != nil {
		return nil, err
	}

	return reply, nil
}

// Rows returns the rows at address
func (c *Client) Rows(request *Request) (cubes.Frame, error) {
	msgRequest := *request
	msgRequest.Format = "msgpack"

	body, err := c.call("/rows", &msgRequest)
	if err != nil {
		return nil, err
	}

	return cubes.NewDecoder(bytes.NewReader(body)).Decode()
}

// Set writes request.Value at address
func (c *Client) Set(request *Request) (*ValueReply, error) {
	reply := &ValueReply{}
	if err := c.jsonCall("/set", request, reply); err != nil {
		return nil, err
	}

	return reply, nil
}

// Update applies request.Operator with request.Value at address
func (c *Client) Update(request *Request) (*ValueReply, error) {
	reply := &ValueReply{}
	if err := c.jsonCall("/update", request, reply); err != nil {
		return nil, err
	}

	return reply, nil
}

// Delete deletes the rows at address
func (c *Client) Delete(request *Request) (*ValueReply, error) {
	reply := &ValueReply{}
	if err := c.jsonCall("/delete", request, reply); err != nil {
		return nil, err
	}

	return reply, nil
}

// Schema returns the cube schema
func (c *Client) Schema() (*SchemaReply, error) {
	reply := &SchemaReply{}
	if err := c.jsonCall("/schema", &Request{}, reply); err != nil {
		return nil, err
	}

	return reply, nil
}

func (c *Client) jsonCall(path string, request interface{}, reply interface{}) error {
	body, err := c.call(path, request)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, reply); err != nil {
		return errors.Wrap(err, "bad JSON reply")
	}

	return nil
}

// call POSTs request as JSON to path and returns the reply body
func (c *Client) call(path string, request interface{}) ([]byte, error) {
	var buf bytes.Buffer

	if err := json.NewEncoder(&buf).Encode(request); err != nil {
		return nil, errors.Wrap(err, "can't encode request")
	}

	httpRequest := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(httpRequest)
	httpRequest.URI().SetScheme(c.url.Scheme)
	httpRequest.URI().SetHost(c.url.Host)
	httpRequest.URI().SetPath(c.url.Path + path)
	httpRequest.SetBody(buf.Bytes())
	httpRequest.Header.SetContentType("application/json")
	httpRequest.Header.SetMethod("POST")

	httpResponse := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(httpResponse)

	if err := c.httpClient.DoTimeout(httpRequest, httpResponse, c.timeout); err != nil {
		return nil, errors.Wrap(err, "failed to call API")
	}

	c.logger.DebugWith("call",
		"path", path,
		"status", httpResponse.StatusCode(),
		"requestID", string(httpResponse.Header.Peek(requestIDHeader)))

	if httpResponse.StatusCode() != http.StatusOK {
		return nil, &StatusError{
			StatusCode: httpResponse.StatusCode(),
			Message:    string(bytes.TrimSpace(httpResponse.Body())),
		}
	}

	// body is released with the response
	body := make([]byte, len(httpResponse.Body()))
	copy(body, httpResponse.Body())
	return body, nil
}

// StatusError is a non 200 reply from the server
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d - %s", e.StatusCode, e.Message)
}
