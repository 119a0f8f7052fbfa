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

	"github.com/nuclio/errors"
)

// Pool is a fixed set of workers running jobs. Every job is submitted
// MaxParallel times, so a job never occupies more workers than that.
type Pool struct {
	ctx     context.Context
	jobChan chan *Job
	workers []*worker
}

// NewPool starts numWorkers workers. maxJobs bounds the number of job
// instances waiting in the pool. Workers exit when ctx is done.
func NewPool(ctx context.Context, maxJobs int, numWorkers int) (*Pool, error) {
	if numWorkers < 1 {
		return nil, errors.Errorf("Bad number of workers - %d", numWorkers)
	}

	if maxJobs < 1 {
		return nil, errors.Errorf("Bad max number of jobs - %d", maxJobs)
	}

	newPool := Pool{
		ctx:     ctx,
		jobChan: make(chan *Job, maxJobs),
	}

	for workerIdx := 0; workerIdx < numWorkers; workerIdx++ {
		newWorker, err := newWorker(ctx, &newPool)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create worker")
		}

		newPool.workers = append(newPool.workers, newWorker)
	}

	return &newPool, nil
}

// Run submits job and waits for it
func (p *Pool) Run(job *Job) Errors {
	if err := p.Submit(job); err != nil {
		return Errors{
			items: []*ItemError{
				{Index: -1, Error: errors.Wrap(err, "Failed to submit job")},
			},
		}
	}

	return job.Wait(p.ctx)
}

// Submit queues job without waiting
func (p *Pool) Submit(job *Job) error {
	if err := job.initialize(); err != nil {
		return errors.Wrap(err, "Failed to initialize job")
	}

	if job.Size == 0 {
		job.signalComplete()
		return nil
	}

	for parallelIdx := 0; parallelIdx < job.MaxParallel; parallelIdx++ {
		select {
		case p.jobChan <- job:
		default:
			return errors.New("Failed to submit job - enlarge the pool max # of jobs")
		}
	}

	return nil
}
