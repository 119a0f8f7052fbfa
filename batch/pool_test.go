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

package batch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type poolSuite struct {
	suite.Suite
	pool   *Pool
	logger logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func (suite *poolSuite) SetupTest() {
	var err error

	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.ctx, suite.cancel = context.WithCancel(context.Background())

	suite.pool, err = NewPool(suite.ctx, 1024, 32)
	suite.Require().NoError(err)
}

func (suite *poolSuite) TearDownTest() {
	suite.cancel()
}

func (suite *poolSuite) TestAllIndices() {
	var seen [512]int32
	job := &Job{
		Size:        len(seen),
		MaxParallel: 8,
		Handler: func(index int) error {
			atomic.AddInt32(&seen[index], 1)
			return nil
		},
	}

	jobErrors := suite.pool.Run(job)
	suite.Require().NoError(jobErrors.Err())

	for index, count := range seen {
		suite.Require().Equal(int32(1), count, "index %d", index)
	}
}

func (suite *poolSuite) TestMaxParallel() {
	var running, maxRunning int32
	job := &Job{
		Size:        64,
		MaxParallel: 2,
		Handler: func(index int) error {
			current := atomic.AddInt32(&running, 1)
			for {
				seen := atomic.LoadInt32(&maxRunning)
				if current <= seen || atomic.CompareAndSwapInt32(&maxRunning, seen, current) {
					break
				}
			}

			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		},
	}

	jobErrors := suite.pool.Run(job)
	suite.Require().NoError(jobErrors.Err())
	suite.Require().True(atomic.LoadInt32(&maxRunning) <= 2)
}

func (suite *poolSuite) TestParallelJobs() {
	job1 := &Job{
		Size:        256,
		MaxParallel: 4,
		Handler:     suite.delayingErrorHandler("job1", time.Millisecond, 0),
	}

	job2 := &Job{
		Size:        128,
		MaxParallel: 8,
		Handler:     suite.delayingErrorHandler("job2", time.Millisecond, 0),
	}

	suite.Require().NoError(suite.pool.Submit(job1))
	suite.Require().NoError(suite.pool.Submit(job2))

	job1Errors := job1.Wait(suite.ctx)
	job2Errors := job2.Wait(suite.ctx)

	suite.Require().NoError(job1Errors.Err())
	suite.Require().NoError(job2Errors.Err())
}

func (suite *poolSuite) TestErrors() {
	job := &Job{
		Size:        128,
		MaxParallel: 4,
		MaxErrors:   4,
		Handler:     suite.delayingErrorHandler("job", 0, 50),
	}

	jobErrors := suite.pool.Run(job)
	suite.Require().Error(jobErrors.Err())
	suite.Require().True(len(jobErrors.Items()) > 4)

	items := jobErrors.Items()
	for i := 1; i < len(items); i++ {
		suite.Require().True(items[i-1].Index < items[i].Index)
	}

	suite.logger.DebugWith("Got error", "err", jobErrors.Err())
}

func (suite *poolSuite) TestWaitForRunningHandlers() {
	var running, late int32
	var returned int32
	job := &Job{
		Size:        64,
		MaxParallel: 8,
		Handler: func(index int) error {
			if atomic.LoadInt32(&returned) != 0 {
				atomic.AddInt32(&late, 1)
			}

			atomic.AddInt32(&running, 1)
			defer atomic.AddInt32(&running, -1)

			if index == 0 {
				return errors.New("first item failed")
			}

			time.Sleep(5 * time.Millisecond)
			return nil
		},
	}

	jobErrors := suite.pool.Run(job)
	atomic.StoreInt32(&returned, 1)

	suite.Require().Error(jobErrors.Err())
	suite.Require().Equal(int32(0), atomic.LoadInt32(&running))

	time.Sleep(20 * time.Millisecond)
	suite.Require().Equal(int32(0), atomic.LoadInt32(&late))
	suite.Require().Equal(int32(0), atomic.LoadInt32(&running))
}

func (suite *poolSuite) TestEmptyJob() {
	job := &Job{
		Handler: func(index int) error { return errors.New("not called") },
	}

	jobErrors := suite.pool.Run(job)
	suite.Require().NoError(jobErrors.Err())
}

func (suite *poolSuite) TestBadJob() {
	jobErrors := suite.pool.Run(&Job{Size: 1})
	suite.Require().Error(jobErrors.Err())

	_, err := NewPool(suite.ctx, 1, 0)
	suite.Require().Error(err)
}

func (suite *poolSuite) delayingErrorHandler(name string, delay time.Duration, errorAfter int) func(int) error {
	return func(index int) error {
		suite.logger.DebugWith("Called", "index", index, "name", name, "errorAfter", errorAfter)

		if delay != 0 {
			time.Sleep(delay)
		}

		if errorAfter != 0 && index > errorAfter {
			return errors.Errorf("Error at index %d", index)
		}

		return nil
	}
}

func TestPoolSuite(t *testing.T) {
	suite.Run(t, new(poolSuite))
}
