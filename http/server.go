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
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/nuclio/logger"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/v3io/cubes"
	"github.com/v3io/cubes/backends"
	"github.com/v3io/cubes/batch"
	_ "github.com/v3io/cubes/backends/csv"  // csv rows format
	_ "github.com/v3io/cubes/backends/json" // json rows format
)

const (
	requestIDHeader = "X-Request-ID"
	msgpackFormat   = "msgpack"
)

var (
	okBytes = []byte("OK")
)

// Server is HTTP server
type Server struct {
	*cubes.ServerBase

	address string // listen address
	server  *fasthttp.Server
	routes  map[string]func(*fasthttp.RequestCtx)

	config *cubes.Config
	logger logger.Logger

	// cubes are single goroutine, requests are serialized
	lock sync.Mutex
	cube *cubes.Cube

	pool       *batch.Pool
	cancelPool context.CancelFunc
}

// NewServer creates a new server
func NewServer(config *cubes.Config, cube *cubes.Cube, logger logger.Logger) (*Server, error) {
	var err error

	if err := config.InitDefaults(); err != nil {
		return nil, errors.Wrap(err, "failed to init defaults")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "bad configuration")
	}

	if cube == nil {
		return nil, fmt.Errorf("nil cube")
	}

	if logger == nil {
		logger, err = cubes.NewLogger(config.Log.Level)
		if err != nil {
			return nil, errors.Wrap(err, "can't create logger")
		}
	}

	poolCtx, cancel := context.WithCancel(context.Background())
	pool, err := batch.NewPool(poolCtx, 4*config.HTTP.Workers, config.HTTP.Workers)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "can't create worker pool")
	}

	srv := &Server{
		ServerBase: cubes.NewServerBase(),

		address:    config.HTTP.Address,
		config:     config,
		logger:     logger,
		cube:       cube,
		pool:       pool,
		cancelPool: cancel,
	}

	srv.initRoutes()

	return srv, nil
}

// Start starts the server on the configured address
func (s *Server) Start() error {
	ln, err := net.Listen("tcp4", s.address)
	if err != nil {
		return errors.Wrapf(err, "can't listen on %s", s.address)
	}

	return s.Serve(ln)
}

// Serve starts serving requests from ln in the background
func (s *Server) Serve(ln net.Listener) error {
	if state := s.State(); state != cubes.ReadyState {
		s.logger.ErrorWith("start from bad state", "state", state)
		return fmt.Errorf("bad state - %s", state)
	}

	s.server = &fasthttp.Server{
		Handler:            s.handler,
		MaxRequestBodySize: 32 * (1 << 20), // 32MB
	}

	go func() {
		if err := s.server.Serve(ln); err != nil {
			s.logger.ErrorWith("error running HTTP server", "error", err)
			s.SetError(err)
		}
	}()

	s.SetState(cubes.RunningState)
	s.logger.InfoWith("server started", "address", ln.Addr().String())
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(); err != nil {
		return errors.Wrap(err, "can't shutdown")
	}

	s.cancelPool()

	s.SetState(cubes.ReadyState)
	return nil
}

func (s *Server) handler(ctx *fasthttp.RequestCtx) {
	requestID := string(ctx.Request.Header.Peek(requestIDHeader))
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx.Response.Header.Set(requestIDHeader, requestID)

	fn, ok := s.routes[string(ctx.Path())]
	if !ok {
		ctx.Error(fmt.Sprintf("unknown path - %q", string(ctx.Path())), http.StatusNotFound)
		return
	}

	fn(ctx)
}

func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	status := map[string]interface{}{
		"state": s.State(),
	}

	if err := s.Err(); err != nil {
		status["error"] = err.Error()
	}

	s.replyJSON(ctx, status)
}

func (s *Server) handleConfig(ctx *fasthttp.RequestCtx) {
	s.replyJSON(ctx, s.config)
}

func (s *Server) handleSchema(ctx *fasthttp.RequestCtx) {
	s.lock.Lock()
	defer s.lock.Unlock()

	schema := s.cube.Schema()
	reply := &SchemaReply{Rows: s.cube.Len()}
	for _, dim := range schema.Dimensions() {
		reply.Dimensions = append(reply.Dimensions, DimensionInfo{
			Name:    dim.Name,
			Column:  dim.Column,
			Alias:   dim.Alias,
			DType:   dim.DType.String(),
			Members: dim.Len(),
		})
	}

	for _, measure := range schema.Measures() {
		reply.Measures = append(reply.Measures, MeasureInfo{
			Name:   measure.Name,
			Column: measure.Column,
			DType:  measure.DType.String(),
		})
	}

	s.replyJSON(ctx, reply)
}

func (s *Server) handleAmbiguities(ctx *fasthttp.RequestCtx) {
	ambiguities := s.cube.Ambiguities()
	reply := make([]string, len(ambiguities))
	for i, ambiguity := range ambiguities {
		reply[i] = ambiguity.String()
	}

	s.replyJSON(ctx, reply)
}

func (s *Server) handleValue(ctx *fasthttp.RequestCtx) {
	request, ok := s.decodeRequest(ctx)
	if !ok {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	cubeCtx, ok := s.resolveAddress(ctx, request)
	if !ok {
		return
	}

	value, err := cubeCtx.Value()
	if err != nil {
		s.replyError(ctx, err)
		return
	}

	n, err := cubeCtx.Len()
	if err != nil {
		s.replyError(ctx, err)
		return
	}

	s.replyJSON(ctx, s.valueReply(cubeCtx, value, n))
}

func (s *Server) handleValues(ctx *fasthttp.RequestCtx) {
	request, ok := s.decodeWrite(ctx)
	if !ok {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	cubeCtx, ok := s.resolveAddress(ctx, request)
	if !ok {
		return
	}

	values, err := cubeCtx.Values(s.pool, request.Addresses, s.config.HTTP.Workers)
	if err != nil {
		s.replyError(ctx, err)
		return
	}

	reply := &ValuesReply{
		Address:     cubeCtx.Address(),
		Aggregation: cubeCtx.Aggregation().String(),
		Values:      make([]*float64, len(values)),
	}

	for i := range values {
		if !math.IsNaN(values[i]) && !math.IsInf(values[i], 0) {
			reply.Values[i] = &values[i]
		}
	}

	s.replyJSON(ctx, reply)
}

func (s *Server) handleRows(ctx *fasthttp.RequestCtx) {
	request, ok := s.decodeRequest(ctx)
	if !ok {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	cubeCtx, ok := s.resolveAddress(ctx, request)
	if !ok {
		return
	}

	frame, err := cubeCtx.Rows()
	if err != nil {
		s.replyError(ctx, err)
		return
	}

	format := request.Format
	if format == "" {
		format = "json"
	}

	if format == msgpackFormat {
		ctx.Response.Header.SetContentType("application/x-msgpack")
		if err := cubes.NewEncoder(ctx).Encode(frame); err != nil {
			s.logger.ErrorWith("can't encode rows", "error", err)
			ctx.Error(fmt.Sprintf("can't encode rows - %s", err), http.StatusInternalServerError)
		}
		return
	}

	backend, err := backends.New(s.logger, format)
	if err != nil {
		ctx.Error(fmt.Sprintf("bad format - %s", err), http.StatusBadRequest)
		return
	}

	ctx.Response.Header.SetContentType("application/" + format)
	if err := backend.Write(ctx, frame); err != nil {
		s.logger.ErrorWith("can't write rows", "error", err, "format", format)
		ctx.Error(fmt.Sprintf("can't write rows - %s", err), http.StatusInternalServerError)
	}
}

func (s *Server) handleSet(ctx *fasthttp.RequestCtx) {
	request, ok := s.decodeWrite(ctx)
	if !ok {
		return
	}

	fn := cubes.AllocSet
	if request.Allocation != "" {
		var err error
		if fn, err = cubes.ParseAllocationFunction(request.Allocation); err != nil {
			ctx.Error(err.Error(), http.StatusBadRequest)
			return
		}
	}

	s.write(ctx, request, func(cubeCtx *cubes.Context) (*cubes.Context, error) {
		return cubeCtx.Allocate(request.Value, fn)
	})
}

func (s *Server) handleUpdate(ctx *fasthttp.RequestCtx) {
	request, ok := s.decodeWrite(ctx)
	if !ok {
		return
	}

	op, err := cubes.ParseOperator(request.Operator)
	if err != nil {
		ctx.Error(err.Error(), http.StatusBadRequest)
		return
	}

	s.write(ctx, request, func(cubeCtx *cubes.Context) (*cubes.Context, error) {
		return cubeCtx.Update(op, request.Value)
	})
}

func (s *Server) handleDelete(ctx *fasthttp.RequestCtx) {
	request, ok := s.decodeWrite(ctx)
	if !ok {
		return
	}

	s.write(ctx, request, func(cubeCtx *cubes.Context) (*cubes.Context, error) {
		return cubeCtx.Delete()
	})
}

func (s *Server) write(ctx *fasthttp.RequestCtx, request *Request, fn func(*cubes.Context) (*cubes.Context, error)) {
	s.lock.Lock()
	defer s.lock.Unlock()

	cubeCtx, ok := s.resolveAddress(ctx, request)
	if !ok {
		return
	}

	cubeCtx, err := fn(cubeCtx)
	if err != nil {
		s.replyError(ctx, err)
		return
	}

	s.logger.InfoWith("write",
		"path", string(ctx.Path()),
		"address", cubeCtx.Address(),
		"requestID", string(ctx.Response.Header.Peek(requestIDHeader)))

	value, err := cubeCtx.Value()
	if err != nil {
		s.replyError(ctx, err)
		return
	}

	n, err := cubeCtx.Len()
	if err != nil {
		s.replyError(ctx, err)
		return
	}

	s.replyJSON(ctx, s.valueReply(cubeCtx, value, n))
}

// decodeRequest reads a JSON body (POST) or query arguments (GET)
func (s *Server) decodeRequest(ctx *fasthttp.RequestCtx) (*Request, bool) {
	request := &Request{}
	if !ctx.IsPost() {
		args := ctx.QueryArgs()
		for _, part := range args.PeekMulti("address") {
			request.Address = append(request.Address, string(part))
		}
		request.Measure = string(args.Peek("measure"))
		request.Aggregation = string(args.Peek("aggregation"))
		request.Format = string(args.Peek("format"))
		return request, true
	}

	if err := json.Unmarshal(ctx.PostBody(), request); err != nil {
		s.logger.ErrorWith("can't decode request", "error", err)
		ctx.Error(fmt.Sprintf("bad request - %s", err), http.StatusBadRequest)
		return nil, false
	}

	return request, true
}

func (s *Server) decodeWrite(ctx *fasthttp.RequestCtx) (*Request, bool) {
	if !ctx.IsPost() {
		ctx.Error("unsupported method", http.StatusMethodNotAllowed)
		return nil, false
	}

	return s.decodeRequest(ctx)
}

// resolveAddress returns the cube context for the request address
func (s *Server) resolveAddress(ctx *fasthttp.RequestCtx, request *Request) (*cubes.Context, bool) {
	cubeCtx, err := s.cube.Get(request.Address...)
	if err != nil {
		s.replyError(ctx, err)
		return nil, false
	}

	if request.Measure != "" {
		if cubeCtx, err = cubeCtx.Get(request.Measure); err != nil {
			s.replyError(ctx, err)
			return nil, false
		}
	}

	if request.Aggregation != "" {
		agg, err := cubes.ParseAggregation(request.Aggregation)
		if err != nil {
			ctx.Error(err.Error(), http.StatusBadRequest)
			return nil, false
		}
		cubeCtx = cubeCtx.As(agg)
	}

	return cubeCtx, true
}

func (s *Server) valueReply(cubeCtx *cubes.Context, value float64, n int) *ValueReply {
	reply := &ValueReply{
		Address:     cubeCtx.Address(),
		Aggregation: cubeCtx.Aggregation().String(),
		Rows:        n,
	}

	if measure := cubeCtx.Measure(); measure != nil {
		reply.Measure = measure.Name
	}

	if !math.IsNaN(value) && !math.IsInf(value, 0) {
		reply.Value = &value
	}

	return reply
}

func (s *Server) replyError(ctx *fasthttp.RequestCtx, err error) {
	status := errorStatus(err)
	s.logger.WarnWith("request failed",
		"path", string(ctx.Path()),
		"status", status,
		"error", err,
		"requestID", string(ctx.Response.Header.Peek(requestIDHeader)))

	ctx.Error(err.Error(), status)
}

// errorStatus maps cube errors to HTTP status codes
func errorStatus(err error) int {
	var (
		unresolved *cubes.UnresolvedTokenError
		ambiguous  *cubes.AmbiguousTokenError
		unknownDim *cubes.UnknownDimensionError
		unknownMem *cubes.UnknownMemberError
		mismatch   *cubes.TypeMismatchError
	)

	switch {
	case errors.Is(err, cubes.ErrReadOnly), errors.Is(err, cubes.ErrForeignContext):
		return http.StatusForbidden
	case errors.Is(err, cubes.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, cubes.ErrNoMeasure):
		return http.StatusBadRequest
	case errors.As(err, &ambiguous):
		return http.StatusConflict
	case errors.As(err, &unresolved), errors.As(err, &unknownDim),
		errors.As(err, &unknownMem), errors.As(err, &mismatch):
		return http.StatusBadRequest
	}

	var empty *cubes.EmptySelectionError
	if errors.As(err, &empty) {
		return http.StatusNotFound
	}

	return http.StatusInternalServerError
}

func (s *Server) replyJSON(ctx *fasthttp.RequestCtx, reply interface{}) error {
	ctx.Response.Header.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(reply); err != nil {
		s.logger.ErrorWith("can't encode JSON", "error", err, "reply", reply)
		ctx.Error("can't encode JSON", http.StatusInternalServerError)
		return err
	}

	return nil
}

func (s *Server) replyOK(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(http.StatusOK)
	ctx.Write(okBytes) // nolint: errcheck
}

func (s *Server) initRoutes() {
	s.routes = map[string]func(*fasthttp.RequestCtx){
		"/_/config":    s.handleConfig,
		"/_/status":    s.handleStatus,
		"/_/ping":      s.replyOK,
		"/ambiguities": s.handleAmbiguities,
		"/delete":      s.handleDelete,
		"/rows":        s.handleRows,
		"/schema":      s.handleSchema,
		"/set":         s.handleSet,
		"/update":      s.handleUpdate,
		"/value":       s.handleValue,
		"/values":      s.handleValues,
	}
}
