// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package util

// batchResult is the outcome of processing a single batch of rows.
type batchResult[T any] struct {
	// Index of batch
	index uint
	// Items produced for the batch (in row order).
	items []T
	// Error arising (if any)
	err error
}

// ParallelMap processes the rows [0,n) in batches of a given size, such that
// each batch is handled by a separate go-routine.  The results of each batch
// are merged back together in row order.  When parallel is false, batches are
// processed sequentially on the calling go-routine.  The first error
// encountered (in row order) is returned.
func ParallelMap[T any](n uint, batchsize uint, parallel bool, fn func(start, end uint) ([]T, error)) ([]T, error) {
	var (
		nbatches = NumBatches(n, batchsize)
		batches  = make([][]T, nbatches)
		errors   = make([]error, nbatches)
	)
	//
	if !parallel || nbatches <= 1 {
		var items []T
		//
		for start := uint(0); start < n; start += batchsize {
			ith, err := fn(start, min(n, start+batchsize))
			if err != nil {
				return nil, err
			}
			//
			items = append(items, ith...)
		}
		//
		return items, nil
	}
	// Construct a communication channel for results.
	c := make(chan batchResult[T], nbatches)
	// Launch one go-routine per batch
	for i := uint(0); i < nbatches; i++ {
		go func(index uint) {
			start := index * batchsize
			items, err := fn(start, min(n, start+batchsize))
			// Send outcome back
			c <- batchResult[T]{index, items, err}
		}(i)
	}
	// Collect up all the results
	for i := uint(0); i < nbatches; i++ {
		res := <-c
		batches[res.index] = res.items
		errors[res.index] = res.err
	}
	// Merge in order
	var count uint

	for i, batch := range batches {
		if errors[i] != nil {
			return nil, errors[i]
		}
		//
		count += uint(len(batch))
	}
	//
	items := make([]T, 0, count)
	for _, batch := range batches {
		items = append(items, batch...)
	}
	//
	return items, nil
}

// ParallelEach is like ParallelMap but for jobs which produce no output other
// than a possible error.  Each job owns a disjoint slice of rows and, hence,
// may write into shared arrays at those rows without synchronisation.
func ParallelEach(n uint, batchsize uint, parallel bool, fn func(start, end uint) error) error {
	_, err := ParallelMap(n, batchsize, parallel, func(start, end uint) ([]struct{}, error) {
		return nil, fn(start, end)
	})
	//
	return err
}

// ParallelTasks runs a fixed set of independent tasks, returning the first
// error (in task order).
func ParallelTasks(parallel bool, tasks ...func() error) error {
	return ParallelEach(uint(len(tasks)), 1, parallel, func(start, _ uint) error {
		return tasks[start]()
	})
}

// NumBatches determines how many batches are needed to cover n rows.
func NumBatches(n, batchsize uint) uint {
	if batchsize == 0 {
		panic("invalid batch size")
	}
	//
	return (n + batchsize - 1) / batchsize
}
