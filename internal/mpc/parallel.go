package mpc

import (
	"context"
	"runtime"
	"sync"
)

// ChunkItem is a reference chunk file waiting to be parsed.
type ChunkItem struct {
	Seq  int
	Path string
}

// ChunkResult holds the parsed rows of a single chunk file.
type ChunkResult struct {
	Seq  int
	Path string
	Rows []Row
	Err  error

	release func()
}

// ParallelRead parses chunk files using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order; at most
// 2*workers chunks are parsed ahead of the collector.
// Once ctx is done, remaining chunks are not parsed and carry ctx.Err().
// If workers is 0, runtime.NumCPU() is used.
func ParallelRead(ctx context.Context, paths []string, workers int) <-chan ChunkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	items := make(chan ChunkItem)
	results := make(chan ChunkResult, 2*workers)
	window := make(chan struct{}, 2*workers)
	release := func() { <-window }

	go func() {
		defer close(items)
		for seq, p := range paths {
			if ctx.Err() != nil {
				return
			}
			select {
			case window <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case items <- ChunkItem{Seq: seq, Path: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				r := ChunkResult{Seq: item.Seq, Path: item.Path, release: release}
				if err := ctx.Err(); err != nil {
					r.Err = err
				} else {
					r.Rows, r.Err = ReadSourceRows(item.Path)
				}
				results <- r
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (r ChunkResult) done() {
	if r.release != nil {
		r.release()
	}
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan ChunkResult, fn func(ChunkResult) error) error {
	pending := make(map[int]ChunkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			err := fn(rr)
			rr.done()
			if err != nil {
				for _, p := range pending {
					p.done()
				}
				// Drain remaining results to unblock workers.
				for r := range results {
					r.done()
				}
				return err
			}
		}
	}

	return nil
}
