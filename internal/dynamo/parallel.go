package dynamo

import (
	"runtime"
	"sync"
)

// Workers returns n if positive, otherwise the number of CPUs.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Chunks splits [0, n) into at most workers contiguous ranges of at least
// minChunk items. The split depends only on its arguments, so callers that
// merge per-chunk results in chunk order get reproducible sums.
func Chunks(n, workers, minChunk int) [][2]int {
	if n <= 0 {
		return nil
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if workers < 1 {
		workers = 1
	}
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers
	out := make([][2]int, 0, workers)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// ParallelFor executes fn over the chunks of [0, n) concurrently. fn receives
// the chunk number so it can write into a private buffer.
func ParallelFor(n, workers, minChunk int, fn func(chunk, start, end int)) {
	chunks := Chunks(n, workers, minChunk)
	if len(chunks) <= 1 {
		if len(chunks) == 1 {
			fn(0, chunks[0][0], chunks[0][1])
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(chunks))

	for c, r := range chunks {
		go func(c, s, e int) {
			defer wg.Done()
			fn(c, s, e)
		}(c, r[0], r[1])
	}

	wg.Wait()
}
