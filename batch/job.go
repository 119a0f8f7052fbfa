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
	"fmt"
	"sort"
	"sync"

	"github.com/nuclio/errors"
)

// ItemError is the error of one item of a job
type ItemError struct {
	Index int
	Error error
}

// Errors are the item errors of a job, sorted by index
type Errors struct {
	items []*ItemError
}

// Items returns the item errors
func (e *Errors) Items() []*ItemError {
	return e.items
}

// Err returns an error describing all failed items, nil if none failed
func (e *Errors) Err() error {
	switch len(e.items) {
	case 0:
		return nil
	case 1:
		return e.items[0].Error
	}

	errorString := ""
	for _, item := range e.items {
		errorString += fmt.Sprintf("%d: %s\n", item.Index, item.Error)
	}

	return errors.New(errorString)
}

// Job calls Handler once for every index in [0, Size)
type Job struct {
	Size        int
	MaxParallel int
	// The job stops after more than MaxErrors failed items
	MaxErrors int
	Handler   func(index int) error

	lock           sync.Mutex
	nextIndex      int
	numCompletions int
	numRunning     int
	stopped        bool
	doneChan       chan struct{}
	errorsChan     chan *ItemError
}

func (j *Job) initialize() error {
	if j.Handler == nil {
		return errors.New("Job has no handler")
	}

	if j.Size < 0 {
		return errors.Errorf("Bad job size - %d", j.Size)
	}

	if j.MaxParallel < 1 {
		j.MaxParallel = 1
	}

	j.nextIndex = 0
	j.numCompletions = 0
	j.numRunning = 0
	j.stopped = false
	j.doneChan = make(chan struct{}, 1)
	j.errorsChan = make(chan *ItemError, j.Size)

	return nil
}

// start takes the next index, false when the job stopped or has no indices left
func (j *Job) start() (int, bool) {
	j.lock.Lock()
	defer j.lock.Unlock()

	if j.stopped || j.nextIndex >= j.Size {
		return 0, false
	}

	index := j.nextIndex
	j.nextIndex++
	j.numRunning++
	return index, true
}

// finish records the result of index. The job is done once it stopped (all
// indices completed or too many errors) and no handler is running.
func (j *Job) finish(index int, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()

	j.numRunning--
	j.numCompletions++
	if err != nil {
		j.errorsChan <- &ItemError{Index: index, Error: err}
	}

	if j.numCompletions >= j.Size || len(j.errorsChan) > j.MaxErrors {
		j.stopped = true
	}

	if j.stopped && j.numRunning == 0 {
		j.signalComplete()
	}
}

func (j *Job) stop() {
	j.lock.Lock()
	j.stopped = true
	j.lock.Unlock()
}

// Wait blocks until the job is done or ctx is done. Once the job is done no
// handler is running.
func (j *Job) Wait(ctx context.Context) Errors {
	var jobErrors Errors

	select {
	case <-j.doneChan:
	case <-ctx.Done():
		j.stop()
		jobErrors.items = append(jobErrors.items, &ItemError{Index: -1, Error: ctx.Err()})
	}

	done := false
	for !done {
		select {
		case itemError := <-j.errorsChan:
			jobErrors.items = append(jobErrors.items, itemError)
		default:
			done = true
		}
	}

	sort.Slice(jobErrors.items, func(i, k int) bool {
		return jobErrors.items[i].Index < jobErrors.items[k].Index
	})

	return jobErrors
}

// signalComplete writes to the done channel without blocking
func (j *Job) signalComplete() {
	select {
	case j.doneChan <- struct{}{}:
	default:
	}
}
