package matte

import (
	"runtime"
	"sync"
)

// minRowsPerWorker keeps tiny images on a single goroutine.
const minRowsPerWorker = 16

// forEachRowBand splits [0, rows) into contiguous bands and runs fn on each band
// concurrently. Bands never overlap.
func forEachRowBand(rows int, fn func(y0, y1 int)) {
	if rows <= 0 {
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if maxW := rows / minRowsPerWorker; maxW < workers {
		workers = maxW
	}
	if workers <= 1 {
		fn(0, rows)
		return
	}

	band := (rows + workers - 1) / workers
	var wg sync.WaitGroup
	for y0 := 0; y0 < rows; y0 += band {
		y1 := min(y0+band, rows)
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}
