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
	"github.com/pkg/errors"

	"github.com/v3io/cubes/batch"
)

// Values evaluates many addresses, relative to c, on pool with up to
// maxParallel workers. Results are in address order. The error is the error
// of the first failing address. No address is being evaluated once Values
// returns, but Values must not run concurrently with writes.
func (c *Context) Values(pool *batch.Pool, addresses [][]interface{}, maxParallel int) ([]float64, error) {
	values := make([]float64, len(addresses))
	job := &batch.Job{
		Size:        len(addresses),
		MaxParallel: maxParallel,
		Handler: func(index int) error {
			ctx, err := c.Get(addresses[index]...)
			if err != nil {
				return errors.Wrapf(err, "address %d", index)
			}

			value, err := ctx.Value()
			if err != nil {
				return errors.Wrapf(err, "address %d", index)
			}

			values[index] = value
			return nil
		},
	}

	jobErrors := pool.Run(job)
	if items := jobErrors.Items(); len(items) > 0 {
		return nil, items[0].Error
	}

	c.cube.logger.DebugWith("Evaluated addresses",
		"base", c.Address(),
		"addresses", len(addresses),
		"parallel", maxParallel)
	return values, nil
}
