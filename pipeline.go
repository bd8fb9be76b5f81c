package qcollide

import "sync"

// task splits data in contiguous chunks, one per worker. fn receives the
// worker index so each goroutine can use its own scratch state.
func task[T any](workersCount int, data []T, fn func(worker int, data T)) {
	if workersCount <= 1 || len(data) <= 1 {
		for i := range data {
			fn(0, data[i])
		}
		return
	}

	var wg sync.WaitGroup
	dataSize := len(data)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		start, end := workerID*chunkSize, min((workerID+1)*chunkSize, dataSize)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(worker, data[i])
			}
		}(workerID, start, end)
	}
	wg.Wait()
}
