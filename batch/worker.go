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
)

type worker struct {
	pool *Pool
	ctx  context.Context
}

func newWorker(ctx context.Context, pool *Pool) (*worker, error) {
	newWorker := worker{
		pool: pool,
		ctx:  ctx,
	}

	go newWorker.handleJobs()

	return &newWorker, nil
}

func (w *worker) handleJobs() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case job := <-w.pool.jobChan:
			w.handleJob(job)
		}
	}
}

func (w *worker) handleJob(job *Job) {

	// drop this instance of the job when it stopped or has no indices left
	index, ok := job.start()
	if !ok {
		return
	}

	job.finish(index, job.Handler(index))

	// return our instance of the job so another worker can take the next index
	select {
	case w.pool.jobChan <- job:
	case <-w.ctx.Done():
	}
}
