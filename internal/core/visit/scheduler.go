package visit

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is one (id, url) pair within a job. The id doubles as log channel and
// output directory name.
type Task struct {
	ID  string
	URL string
}

// Progress is a snapshot of the scheduler's state, reported after every
// completed task.
type Progress struct {
	Done       int
	InProgress int
	Queued     int
	Running    []string
}

// Throttle executes fn for every task with at most concurrency in flight,
// in submission order, with no guaranteed completion order. An error from fn
// is fatal: scheduling stops and the first error is returned. Task-internal
// failures must therefore be handled inside fn.
func Throttle(tasks []Task, concurrency int, fn func(Task) error, report func(Progress)) error {
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	ctx := context.Background()

	var (
		mu       sync.Mutex
		running  = make(map[string]bool)
		started  int
		done     int
		firstErr error
	)

	for _, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		mu.Lock()
		if firstErr != nil {
			mu.Unlock()
			sem.Release(1)
			break
		}
		started++
		running[task.ID] = true
		mu.Unlock()

		go func(task Task) {
			defer sem.Release(1)
			err := fn(task)

			mu.Lock()
			delete(running, task.ID)
			done++
			if err != nil && firstErr == nil {
				firstErr = err
			}
			snapshot := Progress{
				Done:       done,
				InProgress: started - done,
				Queued:     len(tasks) - started,
				Running:    runningIDs(running),
			}
			mu.Unlock()

			if report != nil {
				report(snapshot)
			}
		}(task)
	}

	// Drain: wait for everything in flight.
	_ = sem.Acquire(ctx, int64(concurrency))
	return firstErr
}

func runningIDs(running map[string]bool) []string {
	ids := make([]string, 0, len(running))
	for id := range running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
